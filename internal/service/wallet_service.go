package service

import (
	"context"
	stderrors "errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/metrics"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/internal/publisher"
	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/internal/tron"
	"github.com/tronpay/gateway/pkg/errors"
	"github.com/tronpay/gateway/pkg/logger"
)

// WalletBalances 钱包余额
type WalletBalances struct {
	Usdt decimal.Decimal `json:"usdt"`
	Trx  decimal.Decimal `json:"trx"`
}

// WalletService 钱包管理接口
type WalletService interface {
	// CreateWallet 生成 TRON 身份并落库；开启自动激活时在后台激活
	CreateWallet(ctx context.Context, ownerID string) (*model.Wallet, error)

	// GetWallet 根据 ID 查询
	GetWallet(ctx context.Context, id int64) (*model.Wallet, error)

	// ListWallets 分页查询
	ListWallets(ctx context.Context, page *repository.Pagination) ([]*model.Wallet, error)

	// GetBalances 查询钱包 USDT + TRX 余额 (链上实时)
	GetBalances(ctx context.Context, id int64) (*WalletBalances, error)

	// GetBalancesByAddress 根据地址查询余额 (主钱包等)
	GetBalancesByAddress(ctx context.Context, base58Addr string) (*WalletBalances, error)

	// ActivateWallet 手动激活
	ActivateWallet(ctx context.Context, id int64) (string, error)
}

// walletService 钱包管理实现
type walletService struct {
	walletRepo repository.WalletRepository
	rpc        client.TronRPC
	activation ActivationService
	events     *publisher.WalletPublisher
	contract   string
}

// NewWalletService 创建钱包服务
func NewWalletService(
	walletRepo repository.WalletRepository,
	rpc client.TronRPC,
	activation ActivationService,
	events *publisher.WalletPublisher,
	usdtContract string,
) WalletService {
	return &walletService{
		walletRepo: walletRepo,
		rpc:        rpc,
		activation: activation,
		events:     events,
		contract:   usdtContract,
	}
}

func (s *walletService) CreateWallet(ctx context.Context, ownerID string) (*model.Wallet, error) {
	kp, err := tron.GenerateKeypair()
	if err != nil {
		return nil, errors.ErrInternal.WithMessage("keypair generation failed").WithCause(err)
	}

	wallet := &model.Wallet{
		Address:    kp.Base58Address,
		HexAddress: kp.HexAddress,
		PrivateKey: kp.PrivateKeyHex,
		OwnerID:    ownerID,
	}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, errors.ErrInternal.WithMessage("wallet persist failed").WithCause(err)
	}

	metrics.WalletsCreated.Inc()
	logger.Info("wallet created",
		zap.Int64("wallet_id", wallet.ID),
		zap.String("address", wallet.Address),
		zap.String("owner_id", ownerID))

	if s.events != nil {
		if err := s.events.PublishWalletEvent(ctx, "created", wallet, ""); err != nil {
			logger.Warn("publish wallet created event failed", zap.Error(err))
		}
	}

	// 激活不阻塞创建响应；编排器在发送前会拒绝未激活钱包
	if s.activation != nil && s.activation.Enabled() {
		go func(w model.Wallet) {
			actCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := s.activation.Activate(actCtx, &w); err != nil {
				logger.Error("background activation failed",
					zap.Int64("wallet_id", w.ID),
					zap.Error(err))
			}
		}(*wallet)
	}

	return wallet, nil
}

func (s *walletService) GetWallet(ctx context.Context, id int64) (*model.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, id)
	if stderrors.Is(err, repository.ErrWalletNotFound) {
		return nil, errors.ErrWalletNotFound
	}
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return wallet, nil
}

func (s *walletService) ListWallets(ctx context.Context, page *repository.Pagination) ([]*model.Wallet, error) {
	return s.walletRepo.List(ctx, page)
}

func (s *walletService) GetBalances(ctx context.Context, id int64) (*WalletBalances, error) {
	wallet, err := s.GetWallet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.GetBalancesByAddress(ctx, wallet.Address)
}

func (s *walletService) GetBalancesByAddress(ctx context.Context, base58Addr string) (*WalletBalances, error) {
	if err := tron.ValidateBase58(base58Addr); err != nil {
		return nil, errors.ErrInvalidAddress.WithCause(err)
	}

	account, err := s.rpc.GetAccount(ctx, base58Addr)
	if err != nil {
		return nil, mapRPCError(err)
	}

	usdtWei, err := s.rpc.GetTRC20Balance(ctx, base58Addr, s.contract)
	if err != nil {
		// 未激活地址的合约读取可能失败: 视为零余额
		logger.Warn("trc20 balance read failed, defaulting to zero",
			zap.String("address", base58Addr),
			zap.Error(err))
		usdtWei = big.NewInt(0)
	}

	return &WalletBalances{
		Usdt: decimal.NewFromBigInt(usdtWei, -usdtScale),
		Trx:  SunToTrx(account.BalanceSun),
	}, nil
}

func (s *walletService) ActivateWallet(ctx context.Context, id int64) (string, error) {
	wallet, err := s.GetWallet(ctx, id)
	if err != nil {
		return "", err
	}
	return s.activation.Activate(ctx, wallet)
}
