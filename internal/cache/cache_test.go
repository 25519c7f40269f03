package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestNetworkStateCache_RoundTrip(t *testing.T) {
	rdb := setupRedis(t)
	c := NewNetworkStateCache(rdb, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, ErrStateNotFound)

	state := &NetworkState{
		EnergyPriceSun: 420,
		TrxUsdtRate:    decimal.RequireFromString("0.10"),
	}
	require.NoError(t, c.Set(ctx, state))
	assert.NotZero(t, state.UpdatedAt)

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(420), got.EnergyPriceSun)
	assert.True(t, got.TrxUsdtRate.Equal(decimal.RequireFromString("0.10")))
	assert.Less(t, got.Age(), time.Minute)
}

func TestMasterLock_Serializes(t *testing.T) {
	rdb := setupRedis(t)
	lock := NewMasterLock(rdb)
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.WithLock(ctx, func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "lock must not admit concurrent holders")
}

func TestMasterLock_ReleasedAfterUse(t *testing.T) {
	rdb := setupRedis(t)
	lock := NewMasterLock(rdb)
	ctx := context.Background()

	require.NoError(t, lock.WithLock(ctx, func(ctx context.Context) error { return nil }))

	// 锁已释放，立即可再次取得
	acquired := make(chan struct{})
	go func() {
		_ = lock.WithLock(ctx, func(ctx context.Context) error {
			close(acquired)
			return nil
		})
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released")
	}
}
