// Package cache 提供基于 Redis 的运行时缓存与分布式锁
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var (
	// ErrStateNotFound 缓存中没有网络状态
	ErrStateNotFound = errors.New("network state not cached")
)

const networkStateKey = "gateway:tron:network_state"

// NetworkState 费用引擎缓存的链上状态快照
type NetworkState struct {
	// EnergyPriceSun 能量单价 (SUN)
	EnergyPriceSun int64 `json:"energy_price_sun"`
	// TrxUsdtRate 快照时使用的 TRX/USDT 汇率
	TrxUsdtRate decimal.Decimal `json:"trx_usdt_rate"`
	// UpdatedAt 快照时间 (毫秒)
	UpdatedAt int64 `json:"updated_at"`
}

// Age 返回快照年龄
func (s *NetworkState) Age() time.Duration {
	return time.Since(time.UnixMilli(s.UpdatedAt))
}

// NetworkStateCache 网络状态缓存接口
type NetworkStateCache interface {
	// Get 读取快照；不存在或过期返回 ErrStateNotFound
	Get(ctx context.Context) (*NetworkState, error)

	// Set 写入快照并设置 TTL
	Set(ctx context.Context, state *NetworkState) error
}

// networkStateCache Redis 实现
type networkStateCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewNetworkStateCache 创建网络状态缓存
func NewNetworkStateCache(rdb redis.UniversalClient, ttl time.Duration) NetworkStateCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &networkStateCache{rdb: rdb, ttl: ttl}
}

func (c *networkStateCache) Get(ctx context.Context) (*NetworkState, error) {
	data, err := c.rdb.Get(ctx, networkStateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get network state: %w", err)
	}

	var state NetworkState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode network state: %w", err)
	}
	return &state, nil
}

func (c *networkStateCache) Set(ctx context.Context, state *NetworkState) error {
	if state.UpdatedAt == 0 {
		state.UpdatedAt = time.Now().UnixMilli()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode network state: %w", err)
	}
	if err := c.rdb.Set(ctx, networkStateKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set network state: %w", err)
	}
	return nil
}
