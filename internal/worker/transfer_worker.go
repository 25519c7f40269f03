// Package worker 提供后台任务处理
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tronpay/gateway/pkg/logger"
)

// TransferProcessor 转账处理接口
// 解耦 worker 与 service 包
type TransferProcessor interface {
	// ProcessPending 处理积压的 PENDING 转账
	ProcessPending(ctx context.Context) error

	// ResumeInFlight 恢复 SPONSORING/SENDING 中断转账
	ResumeInFlight(ctx context.Context) error
}

// TransferWorkerConfig 转账 Worker 配置
type TransferWorkerConfig struct {
	// PendingInterval PENDING 处理间隔，默认 60s
	PendingInterval time.Duration
	// ResumeInterval 中断恢复间隔，默认 30s
	ResumeInterval time.Duration
}

// DefaultTransferWorkerConfig 返回默认配置
func DefaultTransferWorkerConfig() *TransferWorkerConfig {
	return &TransferWorkerConfig{
		PendingInterval: 60 * time.Second,
		ResumeInterval:  30 * time.Second,
	}
}

// TransferWorker 转账后台处理
// 两条循环: 积压的 PENDING 转账推进、重启后 SPONSORING/SENDING 行的恢复
type TransferWorker struct {
	cfg       *TransferWorkerConfig
	processor TransferProcessor
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTransferWorker 创建转账 Worker
func NewTransferWorker(cfg *TransferWorkerConfig, processor TransferProcessor) *TransferWorker {
	if cfg == nil {
		cfg = DefaultTransferWorkerConfig()
	}
	return &TransferWorker{cfg: cfg, processor: processor}
}

// Start 启动 Worker
func (w *TransferWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.pendingLoop(ctx)
	go w.resumeLoop(ctx)

	logger.Info("transfer worker started",
		zap.Duration("pending_interval", w.cfg.PendingInterval),
		zap.Duration("resume_interval", w.cfg.ResumeInterval),
	)
}

// Stop 停止 Worker
func (w *TransferWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("transfer worker stopped")
}

// pendingLoop PENDING 处理循环
func (w *TransferWorker) pendingLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PendingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processor.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				logger.Error("process pending transfers failed", zap.Error(err))
			}
		}
	}
}

// resumeLoop 恢复循环
// 启动时立即跑一轮: 进程重启后接续中断的转账
func (w *TransferWorker) resumeLoop(ctx context.Context) {
	defer w.wg.Done()

	w.resumeOnce(ctx)

	ticker := time.NewTicker(w.cfg.ResumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resumeOnce(ctx)
		}
	}
}

func (w *TransferWorker) resumeOnce(ctx context.Context) {
	// 恢复一轮的时间不应超过间隔本身
	runCtx, cancel := context.WithTimeout(ctx, w.cfg.ResumeInterval)
	defer cancel()

	if err := w.processor.ResumeInFlight(runCtx); err != nil && ctx.Err() == nil {
		logger.Error("resume in-flight transfers failed", zap.Error(err))
	}
}
