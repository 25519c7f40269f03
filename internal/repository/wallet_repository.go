package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tronpay/gateway/internal/model"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletAlreadyExists = errors.New("wallet already exists")
)

// WalletRepository 钱包仓储接口
type WalletRepository interface {
	// Create 落库新钱包
	Create(ctx context.Context, wallet *model.Wallet) error

	// GetByID 根据 ID 查询
	GetByID(ctx context.Context, id int64) (*model.Wallet, error)

	// GetByAddress 根据 Base58 地址查询
	GetByAddress(ctx context.Context, address string) (*model.Wallet, error)

	// List 分页查询钱包
	List(ctx context.Context, page *Pagination) ([]*model.Wallet, error)

	// ListActivated 查询已激活钱包 (入账扫描用)
	ListActivated(ctx context.Context, limit int) ([]*model.Wallet, error)

	// MarkActivated 标记激活，记录激活交易哈希
	MarkActivated(ctx context.Context, id int64, txHash string) error
}

// walletRepository 钱包仓储实现
type walletRepository struct {
	*Repository
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{Repository: NewRepository(db)}
}

func (r *walletRepository) Create(ctx context.Context, wallet *model.Wallet) error {
	if err := r.DB(ctx).Create(wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrWalletAlreadyExists
		}
		return err
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.DB(ctx).First(&wallet, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) GetByAddress(ctx context.Context, address string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.DB(ctx).Where("address = ?", address).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) List(ctx context.Context, page *Pagination) ([]*model.Wallet, error) {
	db := r.DB(ctx).Model(&model.Wallet{})
	if err := db.Count(&page.Total).Error; err != nil {
		return nil, err
	}

	var wallets []*model.Wallet
	err := db.Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&wallets).Error
	return wallets, err
}

func (r *walletRepository) ListActivated(ctx context.Context, limit int) ([]*model.Wallet, error) {
	var wallets []*model.Wallet
	err := r.DB(ctx).
		Where("activated = ?", true).
		Order("id ASC").
		Limit(limit).
		Find(&wallets).Error
	return wallets, err
}

func (r *walletRepository) MarkActivated(ctx context.Context, id int64, txHash string) error {
	result := r.DB(ctx).Model(&model.Wallet{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"activated":          true,
			"activation_tx_hash": txHash,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}
