package client

import (
	"context"
	"sync"
	"time"
)

// tokenBucket 进程内令牌桶
// TronGrid 按 key 限速，超出会持续 429；在客户端先行平滑
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64 // 每秒补充令牌数
	last   time.Time
}

// newTokenBucket 创建令牌桶
func newTokenBucket(ratePerSec, burst int) *tokenBucket {
	return &tokenBucket{
		tokens: float64(burst),
		burst:  float64(burst),
		rate:   float64(ratePerSec),
		last:   time.Now(),
	}
}

// Wait 阻塞直到取得令牌或 ctx 结束
func (b *tokenBucket) Wait(ctx context.Context) error {
	for {
		if wait := b.take(); wait <= 0 {
			return nil
		} else {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// take 尝试取令牌，失败时返回建议等待时长
func (b *tokenBucket) take() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	deficit := 1 - b.tokens
	return time.Duration(deficit / b.rate * float64(time.Second))
}
