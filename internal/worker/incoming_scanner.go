package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/metrics"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/internal/publisher"
	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/pkg/logger"
)

// TRC20Lister TronGrid v1 入账列表能力
type TRC20Lister interface {
	ListTRC20Transfers(ctx context.Context, base58Addr, contract string, limit int) ([]*client.TRC20Transfer, error)
}

// IncomingScannerConfig 入账扫描配置
type IncomingScannerConfig struct {
	// Interval 扫描间隔，默认 30s
	Interval time.Duration
	// PageSize 每个钱包单次拉取的转账数
	PageSize int
	// WalletBatch 每轮扫描的钱包数
	WalletBatch int
}

// DefaultIncomingScannerConfig 返回默认配置
func DefaultIncomingScannerConfig() *IncomingScannerConfig {
	return &IncomingScannerConfig{
		Interval:    30 * time.Second,
		PageSize:    50,
		WalletBatch: 200,
	}
}

// IncomingScanner 入账交易扫描器
// 轮询 TronGrid 的 TRC20 转账列表，按 tx_hash 幂等落库并发布入账事件
type IncomingScanner struct {
	cfg          *IncomingScannerConfig
	lister       TRC20Lister
	walletRepo   repository.WalletRepository
	incomingRepo repository.IncomingRepository
	events       *publisher.WalletPublisher
	contract     string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIncomingScanner 创建入账扫描器
func NewIncomingScanner(
	cfg *IncomingScannerConfig,
	lister TRC20Lister,
	walletRepo repository.WalletRepository,
	incomingRepo repository.IncomingRepository,
	events *publisher.WalletPublisher,
	usdtContract string,
) *IncomingScanner {
	if cfg == nil {
		cfg = DefaultIncomingScannerConfig()
	}
	return &IncomingScanner{
		cfg:          cfg,
		lister:       lister,
		walletRepo:   walletRepo,
		incomingRepo: incomingRepo,
		events:       events,
		contract:     usdtContract,
	}
}

// Start 启动扫描器
func (s *IncomingScanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.scanLoop(ctx)

	logger.Info("incoming scanner started",
		zap.Duration("interval", s.cfg.Interval),
		zap.String("contract", s.contract),
	)
}

// Stop 停止扫描器
func (s *IncomingScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Info("incoming scanner stopped")
}

// scanLoop 扫描循环
func (s *IncomingScanner) scanLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce 扫描一轮所有已激活钱包
func (s *IncomingScanner) ScanOnce(ctx context.Context) {
	wallets, err := s.walletRepo.ListActivated(ctx, s.cfg.WalletBatch)
	if err != nil {
		logger.Error("list wallets for scan failed", zap.Error(err))
		return
	}

	for _, wallet := range wallets {
		if ctx.Err() != nil {
			return
		}
		if err := s.scanWallet(ctx, wallet); err != nil {
			logger.Warn("wallet scan failed",
				zap.Int64("wallet_id", wallet.ID),
				zap.String("address", wallet.Address),
				zap.Error(err))
		}
	}
}

// scanWallet 扫描单个钱包的入账
func (s *IncomingScanner) scanWallet(ctx context.Context, wallet *model.Wallet) error {
	transfers, err := s.lister.ListTRC20Transfers(ctx, wallet.Address, s.contract, s.cfg.PageSize)
	if err != nil {
		return err
	}

	for _, tx := range transfers {
		// 只记录打入该钱包的 USDT
		if tx.To != wallet.Address {
			continue
		}

		incoming := &model.IncomingTransaction{
			WalletID:    wallet.ID,
			TxHash:      tx.TransactionID,
			FromAddress: tx.From,
			ToAddress:   tx.To,
			Amount:      decimal.NewFromBigInt(tx.Value, -6),
			Status:      model.IncomingStatusPending,
			DetectedAt:  time.Now().UnixMilli(),
		}

		err := s.incomingRepo.Create(ctx, incoming)
		if stderrors.Is(err, repository.ErrIncomingExists) {
			continue
		}
		if err != nil {
			return err
		}

		// v1 列表只含已上链交易，检测即确认
		if err := s.incomingRepo.MarkConfirmed(ctx, incoming.ID, 0); err != nil {
			logger.Warn("mark incoming confirmed failed",
				zap.String("tx_hash", incoming.TxHash), zap.Error(err))
		} else {
			incoming.Status = model.IncomingStatusConfirmed
		}

		metrics.IncomingDetected.Inc()
		logger.Info("incoming transfer detected",
			zap.Int64("wallet_id", wallet.ID),
			zap.String("tx_hash", tx.TransactionID),
			zap.String("amount", incoming.Amount.String()))

		if s.events != nil {
			if err := s.events.PublishDeposit(ctx, incoming); err != nil {
				logger.Warn("publish deposit event failed", zap.Error(err))
			}
		}
	}
	return nil
}
