package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tronpay/gateway/internal/model"
)

var (
	ErrIncomingNotFound = errors.New("incoming transaction not found")
	// ErrIncomingExists tx_hash 已记录 (扫描器幂等键)
	ErrIncomingExists = errors.New("incoming transaction already recorded")
)

// IncomingRepository 入账交易仓储接口
type IncomingRepository interface {
	// Create 记录入账交易；tx_hash 冲突时返回 ErrIncomingExists
	Create(ctx context.Context, tx *model.IncomingTransaction) error

	// GetByTxHash 根据交易哈希查询
	GetByTxHash(ctx context.Context, txHash string) (*model.IncomingTransaction, error)

	// ListByWallet 分页查询钱包入账
	ListByWallet(ctx context.Context, walletID int64, page *Pagination) ([]*model.IncomingTransaction, error)

	// MarkConfirmed 终态: 确认
	MarkConfirmed(ctx context.Context, id int64, blockNumber int64) error

	// MarkFailed 终态: 失败
	MarkFailed(ctx context.Context, id int64) error
}

// incomingRepository 入账交易仓储实现
type incomingRepository struct {
	*Repository
}

// NewIncomingRepository 创建入账交易仓储
func NewIncomingRepository(db *gorm.DB) IncomingRepository {
	return &incomingRepository{Repository: NewRepository(db)}
}

func (r *incomingRepository) Create(ctx context.Context, tx *model.IncomingTransaction) error {
	if err := r.DB(ctx).Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrIncomingExists
		}
		return err
	}
	return nil
}

func (r *incomingRepository) GetByTxHash(ctx context.Context, txHash string) (*model.IncomingTransaction, error) {
	var tx model.IncomingTransaction
	err := r.DB(ctx).Where("tx_hash = ?", txHash).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIncomingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *incomingRepository) ListByWallet(ctx context.Context, walletID int64, page *Pagination) ([]*model.IncomingTransaction, error) {
	db := r.DB(ctx).Model(&model.IncomingTransaction{}).Where("wallet_id = ?", walletID)
	if err := db.Count(&page.Total).Error; err != nil {
		return nil, err
	}

	var txs []*model.IncomingTransaction
	err := db.Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&txs).Error
	return txs, err
}

func (r *incomingRepository) MarkConfirmed(ctx context.Context, id int64, blockNumber int64) error {
	result := r.DB(ctx).Model(&model.IncomingTransaction{}).
		Where("id = ? AND status = ?", id, model.IncomingStatusPending).
		Updates(map[string]interface{}{
			"status":       model.IncomingStatusConfirmed,
			"block_number": blockNumber,
			"confirmed_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIncomingNotFound
	}
	return nil
}

func (r *incomingRepository) MarkFailed(ctx context.Context, id int64) error {
	result := r.DB(ctx).Model(&model.IncomingTransaction{}).
		Where("id = ? AND status = ?", id, model.IncomingStatusPending).
		Update("status", model.IncomingStatusFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIncomingNotFound
	}
	return nil
}
