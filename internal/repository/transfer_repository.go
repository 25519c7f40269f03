package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tronpay/gateway/internal/model"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrDuplicateReference reference_id 已被非 FAILED 转账占用
	ErrDuplicateReference = errors.New("reference id already used by a live transfer")
	// ErrIllegalTransition 状态迁移被拒绝 (当前状态与期望不符)
	ErrIllegalTransition = errors.New("illegal transfer status transition")
)

// TransferRepository 出账转账仓储接口
type TransferRepository interface {
	// Create 创建转账；reference_id 与存活转账冲突时返回 ErrDuplicateReference
	Create(ctx context.Context, transfer *model.OutgoingTransfer) error

	// GetByID 根据 ID 查询
	GetByID(ctx context.Context, id int64) (*model.OutgoingTransfer, error)

	// GetByReferenceID 根据幂等键查询存活 (非 FAILED) 转账
	GetByReferenceID(ctx context.Context, referenceID string) (*model.OutgoingTransfer, error)

	// GetByTxHash 根据链上交易哈希查询
	GetByTxHash(ctx context.Context, txHash string) (*model.OutgoingTransfer, error)

	// ListByWallet 分页查询钱包转账
	ListByWallet(ctx context.Context, walletID int64, page *Pagination) ([]*model.OutgoingTransfer, error)

	// ListByStatus 按状态查询 (后台任务用)，按创建时间升序
	ListByStatus(ctx context.Context, status model.TransferStatus, limit int) ([]*model.OutgoingTransfer, error)

	// AdvanceStatus 以 CAS 方式推进状态
	// 行的当前状态必须等于 from，否则返回 ErrIllegalTransition；保证状态单调
	AdvanceStatus(ctx context.Context, id int64, from, to model.TransferStatus) error

	// SetSponsorTxHash 记录赞助交易哈希
	SetSponsorTxHash(ctx context.Context, id int64, txHash string) error

	// SetTxHash 首次广播成功后记录交易哈希
	SetTxHash(ctx context.Context, id int64, txHash string) error

	// MarkConfirmed 终态: 确认
	MarkConfirmed(ctx context.Context, id int64) error

	// MarkFailed 终态: 失败，附错误信息
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
}

// transferRepository 出账转账仓储实现
type transferRepository struct {
	*Repository
}

// NewTransferRepository 创建出账转账仓储
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{Repository: NewRepository(db)}
}

func (r *transferRepository) Create(ctx context.Context, transfer *model.OutgoingTransfer) error {
	if err := r.DB(ctx).Create(transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *transferRepository) GetByID(ctx context.Context, id int64) (*model.OutgoingTransfer, error) {
	var transfer model.OutgoingTransfer
	err := r.DB(ctx).First(&transfer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) GetByReferenceID(ctx context.Context, referenceID string) (*model.OutgoingTransfer, error) {
	var transfer model.OutgoingTransfer
	err := r.DB(ctx).
		Where("reference_id = ? AND status <> ?", referenceID, model.TransferStatusFailed).
		First(&transfer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) GetByTxHash(ctx context.Context, txHash string) (*model.OutgoingTransfer, error) {
	var transfer model.OutgoingTransfer
	err := r.DB(ctx).Where("tx_hash = ?", txHash).First(&transfer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) ListByWallet(ctx context.Context, walletID int64, page *Pagination) ([]*model.OutgoingTransfer, error) {
	db := r.DB(ctx).Model(&model.OutgoingTransfer{}).Where("from_wallet_id = ?", walletID)
	if err := db.Count(&page.Total).Error; err != nil {
		return nil, err
	}

	var transfers []*model.OutgoingTransfer
	err := db.Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) ListByStatus(ctx context.Context, status model.TransferStatus, limit int) ([]*model.OutgoingTransfer, error) {
	var transfers []*model.OutgoingTransfer
	err := r.DB(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) AdvanceStatus(ctx context.Context, id int64, from, to model.TransferStatus) error {
	if !from.CanAdvanceTo(to) {
		return ErrIllegalTransition
	}
	result := r.DB(ctx).Model(&model.OutgoingTransfer{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}

func (r *transferRepository) SetSponsorTxHash(ctx context.Context, id int64, txHash string) error {
	return r.DB(ctx).Model(&model.OutgoingTransfer{}).
		Where("id = ?", id).
		Update("sponsor_tx_hash", txHash).Error
}

func (r *transferRepository) SetTxHash(ctx context.Context, id int64, txHash string) error {
	return r.DB(ctx).Model(&model.OutgoingTransfer{}).
		Where("id = ? AND (tx_hash IS NULL OR tx_hash = '')", id).
		Update("tx_hash", txHash).Error
}

func (r *transferRepository) MarkConfirmed(ctx context.Context, id int64) error {
	result := r.DB(ctx).Model(&model.OutgoingTransfer{}).
		Where("id = ? AND status = ?", id, model.TransferStatusSending).
		Updates(map[string]interface{}{
			"status":       model.TransferStatusConfirmed,
			"completed_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}

func (r *transferRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	result := r.DB(ctx).Model(&model.OutgoingTransfer{}).
		Where("id = ? AND status NOT IN ?", id, []model.TransferStatus{
			model.TransferStatusConfirmed, model.TransferStatusFailed,
		}).
		Updates(map[string]interface{}{
			"status":        model.TransferStatusFailed,
			"error_message": errorMessage,
			"completed_at":  time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}
