package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/metrics"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/internal/publisher"
	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/pkg/logger"
)

// ActivationService 钱包激活接口
// 给新钱包打一笔小额 TRX，使地址在账本中物化
type ActivationService interface {
	// Activate 激活钱包
	// 幂等: 已激活的钱包直接返回，不再广播
	Activate(ctx context.Context, wallet *model.Wallet) (string, error)

	// Enabled 自动激活是否开启
	Enabled() bool
}

// activationService 钱包激活实现
type activationService struct {
	sender     *TrxSender
	walletRepo repository.WalletRepository
	events     *publisher.WalletPublisher
	cfg        config.ActivationConfig
}

// NewActivationService 创建激活服务
func NewActivationService(
	sender *TrxSender,
	walletRepo repository.WalletRepository,
	events *publisher.WalletPublisher,
	cfg config.ActivationConfig,
) ActivationService {
	return &activationService{
		sender:     sender,
		walletRepo: walletRepo,
		events:     events,
		cfg:        cfg,
	}
}

func (s *activationService) Enabled() bool {
	return s.cfg.Enabled
}

func (s *activationService) Activate(ctx context.Context, wallet *model.Wallet) (string, error) {
	if wallet.Activated {
		metrics.ActivationsTotal.WithLabelValues("skipped").Inc()
		return wallet.ActivationTxHash, nil
	}
	if !s.cfg.Enabled {
		logger.Debug("auto activation disabled, skipping",
			zap.String("wallet", wallet.Address))
		metrics.ActivationsTotal.WithLabelValues("skipped").Inc()
		return "", nil
	}

	txHash, err := s.sender.SendFromMaster(ctx, wallet.Address, s.cfg.AmountTrx)
	if err != nil {
		metrics.ActivationsTotal.WithLabelValues("failed").Inc()
		logger.Error("wallet activation failed",
			zap.String("wallet", wallet.Address),
			zap.Error(err))
		return "", err
	}

	if err := s.walletRepo.MarkActivated(ctx, wallet.ID, txHash); err != nil {
		return txHash, err
	}
	wallet.Activated = true
	wallet.ActivationTxHash = txHash

	metrics.ActivationsTotal.WithLabelValues("ok").Inc()
	logger.Info("wallet activated",
		zap.Int64("wallet_id", wallet.ID),
		zap.String("wallet", wallet.Address),
		zap.String("tx_id", txHash))

	if s.events != nil {
		if err := s.events.PublishWalletEvent(ctx, "activated", wallet, txHash); err != nil {
			logger.Warn("publish activation event failed", zap.Error(err))
		}
	}

	return txHash, nil
}
