package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// mustAmount 测试辅助
func mustAmount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// countingProcessor 记录调用次数
type countingProcessor struct {
	pending int32
	resumed int32
}

func (c *countingProcessor) ProcessPending(ctx context.Context) error {
	atomic.AddInt32(&c.pending, 1)
	return nil
}

func (c *countingProcessor) ResumeInFlight(ctx context.Context) error {
	atomic.AddInt32(&c.resumed, 1)
	return nil
}

func TestTransferWorker_RunsBothLoops(t *testing.T) {
	processor := &countingProcessor{}
	w := NewTransferWorker(&TransferWorkerConfig{
		PendingInterval: 10 * time.Millisecond,
		ResumeInterval:  10 * time.Millisecond,
	}, processor)

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&processor.pending) >= 2 &&
			atomic.LoadInt32(&processor.resumed) >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTransferWorker_ResumeRunsImmediately(t *testing.T) {
	processor := &countingProcessor{}
	w := NewTransferWorker(&TransferWorkerConfig{
		PendingInterval: time.Hour,
		ResumeInterval:  time.Hour,
	}, processor)

	w.Start(context.Background())
	defer w.Stop()

	// 恢复循环启动即跑一轮 (进程重启接续)，pending 循环等间隔
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&processor.resumed) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&processor.pending))
}

func TestTransferWorker_StopWaits(t *testing.T) {
	processor := &countingProcessor{}
	w := NewTransferWorker(nil, processor)

	w.Start(context.Background())
	w.Stop()

	// Stop 之后不再有新调用
	resumed := atomic.LoadInt32(&processor.resumed)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, resumed, atomic.LoadInt32(&processor.resumed))
}
