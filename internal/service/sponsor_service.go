package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/metrics"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/pkg/errors"
	"github.com/tronpay/gateway/pkg/logger"
)

// SponsorService 燃料赞助接口
// 在 TRC20 转账前把配置的 TRX 数额从主钱包打到用户钱包
type SponsorService interface {
	// Sponsor 赞助 TRX 并等待资金可见
	// 幂等键是转账 id: 同一转账重入时若赞助哈希已存在则只等可见性
	Sponsor(ctx context.Context, transfer *model.OutgoingTransfer, wallet *model.Wallet) (string, error)

	// AwaitVisibility 等待用户钱包出现期望的余额增量或交易被索引
	AwaitVisibility(ctx context.Context, wallet *model.Wallet, txHash string, baselineSun int64) error
}

// sponsorService 燃料赞助实现
type sponsorService struct {
	sender  *TrxSender
	cfg     config.SponsorConfig
	pollCfg config.PollConfig
}

// NewSponsorService 创建赞助服务
func NewSponsorService(sender *TrxSender, cfg config.SponsorConfig, pollCfg config.PollConfig) SponsorService {
	return &sponsorService{
		sender:  sender,
		cfg:     cfg,
		pollCfg: pollCfg,
	}
}

func (s *sponsorService) Sponsor(ctx context.Context, transfer *model.OutgoingTransfer, wallet *model.Wallet) (string, error) {
	// 重入: 已有赞助哈希时不再广播，只等待可见
	if transfer.SponsorTxHash != "" {
		logger.Info("sponsorship already broadcast, awaiting visibility",
			zap.Int64("transfer_id", transfer.ID),
			zap.String("sponsor_tx", transfer.SponsorTxHash))
		if err := s.AwaitVisibility(ctx, wallet, transfer.SponsorTxHash, -1); err != nil {
			return transfer.SponsorTxHash, err
		}
		return transfer.SponsorTxHash, nil
	}

	baseline, err := s.sender.rpc.GetAccount(ctx, wallet.Address)
	if err != nil {
		return "", mapRPCError(err)
	}

	txHash, err := s.sender.SendFromMaster(ctx, wallet.Address, s.cfg.AmountTrx)
	if err != nil {
		metrics.SponsorshipsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	logger.Info("gas sponsored",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("wallet", wallet.Address),
		zap.String("amount_trx", s.cfg.AmountTrx.String()),
		zap.String("tx_id", txHash))

	if err := s.AwaitVisibility(ctx, wallet, txHash, baseline.BalanceSun); err != nil {
		metrics.SponsorshipsTotal.WithLabelValues("failed").Inc()
		return txHash, err
	}

	metrics.SponsorshipsTotal.WithLabelValues("ok").Inc()
	return txHash, nil
}

// AwaitVisibility 有界轮询: getaccount 余额增量或 gettransactioninfobyid 成功
// baselineSun < 0 表示基线未知，只依赖交易索引
func (s *sponsorService) AwaitVisibility(ctx context.Context, wallet *model.Wallet, txHash string, baselineSun int64) error {
	deadline := time.Now().Add(time.Duration(s.pollCfg.VisibilitySec) * time.Second)
	interval := time.Duration(s.pollCfg.VisibilityIntervalSec) * time.Second

	expectedSun := baselineSun + TrxToSun(s.cfg.AmountTrx)

	for {
		if baselineSun >= 0 {
			if account, err := s.sender.rpc.GetAccount(ctx, wallet.Address); err == nil &&
				account.BalanceSun >= expectedSun {
				return nil
			}
		}

		if info, err := s.sender.rpc.GetTransactionInfo(ctx, txHash); err == nil &&
			info.Found && info.Success() {
			return nil
		}

		if time.Now().After(deadline) {
			return errors.ErrVisibilityTimeout.
				WithDetail("tx_hash", txHash).
				WithDetail("wallet", wallet.Address)
		}

		select {
		case <-ctx.Done():
			return errors.ErrRpcUnavailable.WithCause(ctx.Err())
		case <-time.After(interval):
		}
	}
}

// SponsorAmount 返回配置的赞助额
func (s *sponsorService) SponsorAmount() decimal.Decimal {
	return s.cfg.AmountTrx
}
