package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/metrics"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/internal/publisher"
	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/internal/tron"
	"github.com/tronpay/gateway/pkg/errors"
	"github.com/tronpay/gateway/pkg/logger"
)

// maxOrderAmount 单笔上限，防御溢出
var maxOrderAmount = decimal.NewFromInt(1_000_000_000)

// TransferRequest 出账请求
type TransferRequest struct {
	FromWalletID int64
	OrderAmount  decimal.Decimal
	ReferenceID  string
	PreviewOnly  bool
}

// TransferResult 出账结果
type TransferResult struct {
	// Transfer 持久化的转账行 (preview 时为 nil)
	Transfer *model.OutgoingTransfer
	// Quote preview 模式的报价明细
	Quote *FeeQuote
	// Pending 转账仍在进行，未进入终态 (确认轮询超时、赞助可见性超时，或幂等命中进行中的转账)
	Pending bool
}

// TransferService 支付编排接口
// 状态机: PENDING → SPONSORING → SENDING → CONFIRMED；FAILED 终态
type TransferService interface {
	// Transfer 受理出账: 报价、落库、赞助、发送、确认
	Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)

	// Preview 只报价，无任何副作用，不落库
	Preview(ctx context.Context, walletID int64, orderAmount decimal.Decimal) (*FeeQuote, error)

	// GetTransfer 根据 ID 查询
	GetTransfer(ctx context.Context, id int64) (*model.OutgoingTransfer, error)

	// GetTransferByReference 根据幂等键查询
	GetTransferByReference(ctx context.Context, referenceID string) (*model.OutgoingTransfer, error)

	// GetTransferByTxHash 根据链上交易哈希查询
	GetTransferByTxHash(ctx context.Context, txHash string) (*model.OutgoingTransfer, error)

	// ListTransfers 分页查询钱包转账
	ListTransfers(ctx context.Context, walletID int64, page *repository.Pagination) ([]*model.OutgoingTransfer, error)

	// CancelTransfer 取消尚未开始赞助的转账
	// 赞助广播之后没有链上回滚，不允许取消
	CancelTransfer(ctx context.Context, id int64) error

	// ProcessPending 处理积压的 PENDING 转账 (后台任务入口)
	ProcessPending(ctx context.Context) error

	// ResumeInFlight 恢复 SPONSORING/SENDING 中断转账 (后台任务入口)
	// 已有交易哈希的行只重新轮询，绝不二次广播
	ResumeInFlight(ctx context.Context) error
}

// transferService 支付编排实现
type transferService struct {
	transferRepo repository.TransferRepository
	walletRepo   repository.WalletRepository
	rpc          client.TronRPC
	fees         FeeService
	sponsor      SponsorService
	events       *publisher.TransferPublisher

	locks   *walletLocks
	pollCfg config.PollConfig
	gridCfg config.TronGridConfig

	contract   string
	masterAddr string
	batchSize  int
}

// NewTransferService 创建支付编排器
func NewTransferService(
	transferRepo repository.TransferRepository,
	walletRepo repository.WalletRepository,
	rpc client.TronRPC,
	fees FeeService,
	sponsor SponsorService,
	events *publisher.TransferPublisher,
	pollCfg config.PollConfig,
	gridCfg config.TronGridConfig,
	usdtContract string,
	masterAddr string,
	batchSize int,
) TransferService {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &transferService{
		transferRepo: transferRepo,
		walletRepo:   walletRepo,
		rpc:          rpc,
		fees:         fees,
		sponsor:      sponsor,
		events:       events,
		locks:        newWalletLocks(),
		pollCfg:      pollCfg,
		gridCfg:      gridCfg,
		contract:     usdtContract,
		masterAddr:   masterAddr,
		batchSize:    batchSize,
	}
}

func (s *transferService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	wallet, err := s.loadWallet(ctx, req.FromWalletID)
	if err != nil {
		return nil, err
	}

	// preview: 无副作用，不加锁不落库
	if req.PreviewOnly {
		quote, err := s.fees.Quote(ctx, wallet.Address, req.OrderAmount)
		if err != nil {
			return nil, err
		}
		return &TransferResult{Quote: quote}, nil
	}

	unlock := s.locks.Lock(wallet.ID)
	defer unlock()

	// 幂等: reference_id 命中存活转账时直接返回
	if req.ReferenceID != "" {
		if existing, err := s.transferRepo.GetByReferenceID(ctx, req.ReferenceID); err == nil {
			return &TransferResult{Transfer: existing, Pending: !existing.Status.IsTerminal()}, nil
		} else if !stderrors.Is(err, repository.ErrTransferNotFound) {
			return nil, errors.ErrInternal.WithCause(err)
		}
	}

	if !wallet.Activated {
		return nil, errors.ErrWalletInactive
	}

	// 托管密钥自检: 派生地址必须匹配，防止对错误地址签名
	if err := tron.VerifyKeyAddress(wallet.PrivateKey, wallet.Address); err != nil {
		logger.Error("wallet key mismatch detected",
			zap.Int64("wallet_id", wallet.ID),
			zap.String("address", wallet.Address))
		return nil, errors.ErrWalletCompromised
	}

	quote, err := s.fees.Quote(ctx, wallet.Address, req.OrderAmount)
	if err != nil {
		return nil, err
	}

	// 报价冻结进行: 之后的策略变更不影响已受理订单
	transfer := &model.OutgoingTransfer{
		FromWalletID: wallet.ID,
		ToAddress:    s.masterAddr,
		OrderAmount:  req.OrderAmount,
		FeeAmount:    quote.TotalFee,
		Amount:       quote.TotalAmount,
		GasCostTrx:   quote.GasCostTrx,
		GasCostUsdt:  quote.GasCostUsdt,
		Status:       model.TransferStatusPending,
		ReferenceID:  req.ReferenceID,
	}
	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		if stderrors.Is(err, repository.ErrDuplicateReference) {
			// 并发提交竞争: 落库失败方返回先到者的行
			if winner, lookupErr := s.transferRepo.GetByReferenceID(ctx, req.ReferenceID); lookupErr == nil {
				return &TransferResult{Transfer: winner, Pending: !winner.Status.IsTerminal()}, nil
			}
			return nil, errors.ErrDuplicateReference
		}
		return nil, errors.ErrInternal.WithCause(err)
	}

	logger.Info("transfer accepted",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("wallet_id", wallet.ID),
		zap.String("order_amount", transfer.OrderAmount.String()),
		zap.String("total_amount", transfer.Amount.String()),
		zap.String("reference_id", transfer.ReferenceID))

	s.publish(ctx, transfer)

	return s.runFromPending(ctx, transfer, wallet, quote.FeeLimitSun)
}

func (s *transferService) Preview(ctx context.Context, walletID int64, orderAmount decimal.Decimal) (*FeeQuote, error) {
	if err := validateAmount(orderAmount); err != nil {
		return nil, err
	}
	wallet, err := s.loadWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return s.fees.Quote(ctx, wallet.Address, orderAmount)
}

// runFromPending 步骤 4-8: 余额检查 → 赞助 → 发送 → 确认
func (s *transferService) runFromPending(ctx context.Context, transfer *model.OutgoingTransfer, wallet *model.Wallet, feeLimitSun int64) (*TransferResult, error) {
	// 余额检查: balanceOf ≥ totalAmount，不足即失败，无任何广播
	balanceWei, err := s.rpc.GetTRC20Balance(ctx, wallet.Address, s.contract)
	if err != nil {
		return nil, s.fail(ctx, transfer, errors.ErrRpcUnavailable.WithCause(err), "balance check failed")
	}
	balance := decimal.NewFromBigInt(balanceWei, -usdtScale)
	if balance.LessThan(transfer.Amount) {
		return nil, s.fail(ctx, transfer,
			errors.ErrInsufficientUserBalance.
				WithDetail("required", transfer.Amount.String()).
				WithDetail("available", balance.String()),
			fmt.Sprintf("%s: required %s, available %s",
				errors.ErrInsufficientUserBalance.Code, transfer.Amount, balance))
	}

	if err := s.advance(ctx, transfer, model.TransferStatusPending, model.TransferStatusSponsoring); err != nil {
		return nil, err
	}

	return s.runFromSponsoring(ctx, transfer, wallet, feeLimitSun)
}

// runFromSponsoring 步骤 5: TRX 赞助与可见性等待
func (s *transferService) runFromSponsoring(ctx context.Context, transfer *model.OutgoingTransfer, wallet *model.Wallet, feeLimitSun int64) (*TransferResult, error) {
	started := time.Now()

	sponsorHash, err := s.sponsor.Sponsor(ctx, transfer, wallet)
	if sponsorHash != "" && transfer.SponsorTxHash == "" {
		transfer.SponsorTxHash = sponsorHash
		if dbErr := s.transferRepo.SetSponsorTxHash(ctx, transfer.ID, sponsorHash); dbErr != nil {
			logger.Error("persist sponsor tx hash failed",
				zap.Int64("transfer_id", transfer.ID), zap.Error(dbErr))
		}
	}
	if err != nil {
		// 赞助已广播但尚未可见: 留在 SPONSORING，恢复任务继续等待
		if stderrors.Is(err, errors.ErrVisibilityTimeout) && transfer.SponsorTxHash != "" {
			logger.Warn("sponsorship visibility timeout, leaving transfer in SPONSORING",
				zap.Int64("transfer_id", transfer.ID),
				zap.String("sponsor_tx", transfer.SponsorTxHash))
			return &TransferResult{Transfer: transfer, Pending: true}, nil
		}
		return nil, s.fail(ctx, transfer, err, errors.AsError(err).Code)
	}

	metrics.TransferLatency.WithLabelValues("sponsor").Observe(time.Since(started).Seconds())

	if err := s.advance(ctx, transfer, model.TransferStatusSponsoring, model.TransferStatusSending); err != nil {
		return nil, err
	}

	return s.runFromSending(ctx, transfer, wallet, feeLimitSun)
}

// runFromSending 步骤 6-7: TRC20 发送与确认
// 已有交易哈希时跳过广播，只轮询确认
func (s *transferService) runFromSending(ctx context.Context, transfer *model.OutgoingTransfer, wallet *model.Wallet, feeLimitSun int64) (*TransferResult, error) {
	if transfer.TxHash == "" {
		txHash, err := s.broadcastTRC20(ctx, transfer, wallet, feeLimitSun)
		if err != nil {
			return nil, s.fail(ctx, transfer, err, errors.AsError(err).Code)
		}
		transfer.TxHash = txHash
		if dbErr := s.transferRepo.SetTxHash(ctx, transfer.ID, txHash); dbErr != nil {
			logger.Error("persist tx hash failed",
				zap.Int64("transfer_id", transfer.ID), zap.Error(dbErr))
		}
		s.publish(ctx, transfer)
	}

	return s.awaitConfirmation(ctx, transfer)
}

// broadcastTRC20 构造、签名并广播 TRC20 transfer
func (s *transferService) broadcastTRC20(ctx context.Context, transfer *model.OutgoingTransfer, wallet *model.Wallet, feeLimitSun int64) (string, error) {
	ownerAddr, err := tron.DecodeBase58(wallet.Address)
	if err != nil {
		return "", errors.ErrInvalidAddress.WithCause(err)
	}
	contractAddr, err := tron.DecodeBase58(s.contract)
	if err != nil {
		return "", errors.ErrInvalidAddress.WithCause(err)
	}
	toAddr, err := tron.DecodeBase58(transfer.ToAddress)
	if err != nil {
		return "", errors.ErrInvalidAddress.WithCause(err)
	}

	if feeLimitSun <= 0 {
		// 恢复路径: 从冻结的 gas 成本重建 fee_limit
		feeLimitSun = TrxToSun(transfer.GasCostTrx.Mul(s.gridCfg.FeeLimitSafetyFactor))
	}

	block, err := s.rpc.GetNowBlock(ctx)
	if err != nil {
		return "", mapRPCError(err)
	}
	ref, err := tron.BlockRefFromID(block.BlockID, block.Timestamp)
	if err != nil {
		return "", errors.ErrInternal.WithCause(err)
	}

	// USDT 6 位小数量化
	units := transfer.Amount.Shift(usdtScale).Round(0).BigInt()
	tx, err := tron.BuildTRC20Transfer(ownerAddr, contractAddr, toAddr, units, feeLimitSun, ref)
	if err != nil {
		return "", errors.ErrInternal.WithCause(err)
	}

	signed, err := tron.Sign(tx, wallet.PrivateKey, wallet.Address)
	if err != nil {
		if stderrors.Is(err, tron.ErrKeyMismatch) {
			return "", errors.ErrWalletCompromised
		}
		return "", errors.ErrInternal.WithCause(err)
	}

	result, err := s.rpc.BroadcastTransaction(ctx, signed.Transaction)
	if err != nil {
		return "", mapRPCError(err)
	}
	if !result.Result && !result.Duplicate() {
		return "", errors.ErrBroadcastRejected.
			WithDetail("code", result.Code).
			WithDetail("message", result.Message)
	}

	txHash := signed.TxID
	if result.TxID != "" {
		txHash = result.TxID
	}

	logger.Info("trc20 transfer broadcast",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("tx_id", txHash),
		zap.String("amount", transfer.Amount.String()),
		zap.Bool("duplicate", result.Duplicate()))

	return txHash, nil
}

// awaitConfirmation 步骤 7: 有界确认轮询
// 超时不进终态: 留在 SENDING，由恢复任务接续
func (s *transferService) awaitConfirmation(ctx context.Context, transfer *model.OutgoingTransfer) (*TransferResult, error) {
	started := time.Now()
	deadline := started.Add(time.Duration(s.pollCfg.ConfirmSec) * time.Second)
	interval := time.Duration(s.pollCfg.ConfirmIntervalSec) * time.Second

	for {
		info, err := s.rpc.GetTransactionInfo(ctx, transfer.TxHash)
		if err == nil && info.Found {
			return s.settle(ctx, transfer, info, started)
		}
		if err != nil {
			logger.Warn("transaction info poll failed",
				zap.Int64("transfer_id", transfer.ID), zap.Error(err))
		}

		if time.Now().After(deadline) {
			metrics.TransfersTotal.WithLabelValues("pending_timeout").Inc()
			logger.Warn("confirmation poll timed out, leaving transfer in SENDING",
				zap.Int64("transfer_id", transfer.ID),
				zap.String("tx_id", transfer.TxHash))
			return &TransferResult{Transfer: transfer, Pending: true}, nil
		}

		select {
		case <-ctx.Done():
			return &TransferResult{Transfer: transfer, Pending: true}, nil
		case <-time.After(interval):
		}
	}
}

// settle 根据回执进终态
func (s *transferService) settle(ctx context.Context, transfer *model.OutgoingTransfer, info *client.TransactionInfo, started time.Time) (*TransferResult, error) {
	if info.Success() {
		if err := s.transferRepo.MarkConfirmed(ctx, transfer.ID); err != nil {
			return nil, errors.ErrInternal.WithCause(err)
		}
		transfer.Status = model.TransferStatusConfirmed
		transfer.CompletedAt = time.Now().UnixMilli()

		metrics.TransfersTotal.WithLabelValues("confirmed").Inc()
		metrics.TransferLatency.WithLabelValues("confirm").Observe(time.Since(started).Seconds())
		metrics.TransferVolume.Add(transfer.Amount.InexactFloat64())
		metrics.FeesCollected.Add(transfer.FeeAmount.InexactFloat64())

		logger.Info("transfer confirmed",
			zap.Int64("transfer_id", transfer.ID),
			zap.String("tx_id", transfer.TxHash),
			zap.Int64("block", info.BlockNumber),
			zap.Int64("energy_used", info.EnergyUsageTotal))

		s.publish(ctx, transfer)
		return &TransferResult{Transfer: transfer}, nil
	}

	// REVERT / OUT_OF_ENERGY / FAILED: 终态失败，不自动重试
	reason := info.FailureReason()
	err := errors.ErrReceiptFailure.WithDetail("receipt", reason)
	return nil, s.fail(ctx, transfer, err, fmt.Sprintf("%s: %s", errors.ErrReceiptFailure.Code, reason))
}

func (s *transferService) GetTransfer(ctx context.Context, id int64) (*model.OutgoingTransfer, error) {
	transfer, err := s.transferRepo.GetByID(ctx, id)
	if stderrors.Is(err, repository.ErrTransferNotFound) {
		return nil, errors.ErrTransferNotFound
	}
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return transfer, nil
}

func (s *transferService) GetTransferByReference(ctx context.Context, referenceID string) (*model.OutgoingTransfer, error) {
	transfer, err := s.transferRepo.GetByReferenceID(ctx, referenceID)
	if stderrors.Is(err, repository.ErrTransferNotFound) {
		return nil, errors.ErrTransferNotFound
	}
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return transfer, nil
}

func (s *transferService) GetTransferByTxHash(ctx context.Context, txHash string) (*model.OutgoingTransfer, error) {
	transfer, err := s.transferRepo.GetByTxHash(ctx, txHash)
	if stderrors.Is(err, repository.ErrTransferNotFound) {
		return nil, errors.ErrTransferNotFound
	}
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return transfer, nil
}

func (s *transferService) ListTransfers(ctx context.Context, walletID int64, page *repository.Pagination) ([]*model.OutgoingTransfer, error) {
	return s.transferRepo.ListByWallet(ctx, walletID, page)
}

func (s *transferService) CancelTransfer(ctx context.Context, id int64) error {
	transfer, err := s.GetTransfer(ctx, id)
	if err != nil {
		return err
	}
	if transfer.Status != model.TransferStatusPending {
		return errors.ErrClientCancelled.
			WithMessage("transfer can only be cancelled before sponsoring starts")
	}

	// CAS 失败说明编排已推进，拒绝取消
	if err := s.transferRepo.MarkFailed(ctx, id, errors.ErrClientCancelled.Code); err != nil {
		return errors.ErrClientCancelled.
			WithMessage("transfer advanced past the cancellable stage")
	}

	transfer.Status = model.TransferStatusFailed
	transfer.ErrorMessage = errors.ErrClientCancelled.Code
	metrics.TransfersTotal.WithLabelValues("failed").Inc()
	s.publish(ctx, transfer)
	return nil
}

func (s *transferService) ProcessPending(ctx context.Context) error {
	transfers, err := s.transferRepo.ListByStatus(ctx, model.TransferStatusPending, s.batchSize)
	if err != nil {
		return err
	}

	for _, transfer := range transfers {
		if err := s.resumeOne(ctx, transfer); err != nil {
			logger.Error("pending transfer processing failed",
				zap.Int64("transfer_id", transfer.ID), zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *transferService) ResumeInFlight(ctx context.Context) error {
	for _, status := range []model.TransferStatus{
		model.TransferStatusSponsoring,
		model.TransferStatusSending,
	} {
		transfers, err := s.transferRepo.ListByStatus(ctx, status, s.batchSize)
		if err != nil {
			return err
		}
		for _, transfer := range transfers {
			if err := s.resumeOne(ctx, transfer); err != nil {
				logger.Error("transfer resume failed",
					zap.Int64("transfer_id", transfer.ID),
					zap.String("status", transfer.Status.String()),
					zap.Error(err))
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

// resumeOne 从持久化状态接续一笔转账
func (s *transferService) resumeOne(ctx context.Context, transfer *model.OutgoingTransfer) error {
	unlock, ok := s.locks.TryLock(transfer.FromWalletID)
	if !ok {
		// 前台编排正在处理同一钱包
		return nil
	}
	defer unlock()

	// 锁内重读，前台可能已推进
	fresh, err := s.transferRepo.GetByID(ctx, transfer.ID)
	if err != nil || fresh.Status.IsTerminal() {
		return err
	}
	transfer = fresh

	wallet, err := s.loadWallet(ctx, transfer.FromWalletID)
	if err != nil {
		return err
	}

	switch transfer.Status {
	case model.TransferStatusPending:
		_, err = s.runFromPending(ctx, transfer, wallet, 0)
	case model.TransferStatusSponsoring:
		_, err = s.runFromSponsoring(ctx, transfer, wallet, 0)
	case model.TransferStatusSending:
		if transfer.TxHash != "" {
			_, err = s.awaitConfirmation(ctx, transfer)
		} else {
			_, err = s.runFromSending(ctx, transfer, wallet, 0)
		}
	}
	return err
}

// advance 推进状态并发布事件
func (s *transferService) advance(ctx context.Context, transfer *model.OutgoingTransfer, from, to model.TransferStatus) error {
	if err := s.transferRepo.AdvanceStatus(ctx, transfer.ID, from, to); err != nil {
		return errors.ErrInternal.WithMessage("status transition %s → %s rejected", from, to).WithCause(err)
	}
	transfer.Status = to
	s.publish(ctx, transfer)
	return nil
}

// fail 进入 FAILED 终态并返回原错误
func (s *transferService) fail(ctx context.Context, transfer *model.OutgoingTransfer, cause error, message string) error {
	if err := s.transferRepo.MarkFailed(ctx, transfer.ID, message); err != nil {
		logger.Error("mark transfer failed rejected",
			zap.Int64("transfer_id", transfer.ID), zap.Error(err))
	} else {
		transfer.Status = model.TransferStatusFailed
		transfer.ErrorMessage = message
		transfer.CompletedAt = time.Now().UnixMilli()
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		s.publish(ctx, transfer)
	}

	logger.Error("transfer failed",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("reason", message))

	return cause
}

// publish 发布状态事件，失败只记日志
func (s *transferService) publish(ctx context.Context, transfer *model.OutgoingTransfer) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransferUpdate(ctx, transfer); err != nil {
		logger.Warn("publish transfer update failed",
			zap.Int64("transfer_id", transfer.ID), zap.Error(err))
	}
}

func (s *transferService) loadWallet(ctx context.Context, walletID int64) (*model.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if stderrors.Is(err, repository.ErrWalletNotFound) {
		return nil, errors.ErrWalletNotFound
	}
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return wallet, nil
}

// validateTransferRequest 请求校验
func validateTransferRequest(req *TransferRequest) error {
	if req == nil || req.FromWalletID <= 0 {
		return errors.ErrBadRequest.WithMessage("from_wallet_id is required")
	}
	if err := validateAmount(req.OrderAmount); err != nil {
		return err
	}
	if len(req.ReferenceID) > 128 {
		return errors.ErrBadRequest.WithMessage("reference_id too long")
	}
	return nil
}

// validateAmount 金额校验: 正数、不低于最小单位、6 位小数内
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return errors.ErrInvalidAmount.WithMessage("order amount must be positive")
	}
	if amount.GreaterThan(maxOrderAmount) {
		return errors.ErrInvalidAmount.WithMessage("order amount exceeds maximum")
	}
	units := amount.Shift(usdtScale)
	if !units.Equal(units.Round(0)) {
		return errors.ErrInvalidAmount.WithMessage("order amount has more than 6 decimal places")
	}
	if units.LessThan(decimal.NewFromInt(1)) {
		return errors.ErrInvalidAmount.WithMessage("order amount below smallest unit")
	}
	return nil
}
