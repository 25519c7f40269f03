package service

import (
	"context"
	"encoding/hex"
	stderrors "errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/cache"
	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/tron"
	"github.com/tronpay/gateway/pkg/logger"
)

// usdtScale USDT 小数位数
const usdtScale = 6

// FeeQuote 费用报价明细
// 字段足以复现整个计算，直接驱动 preview 响应
type FeeQuote struct {
	OrderAmount decimal.Decimal `json:"order_amount"`
	// EnergyEstimate TRC20 转账能量估算
	EnergyEstimate int64 `json:"energy_estimate"`
	// EnergyPriceSun 能量单价 (SUN)
	EnergyPriceSun int64 `json:"energy_price_sun"`
	// TrxUsdtRate 计算使用的汇率
	TrxUsdtRate decimal.Decimal `json:"trx_usdt_rate"`
	// GasCostTrx 能量成本 (TRX)
	GasCostTrx decimal.Decimal `json:"gas_cost_trx"`
	// GasCostUsdt 能量成本 (USDT)
	GasCostUsdt decimal.Decimal `json:"gas_cost_usdt"`
	// PlatformFee 平台佣金 (USDT)
	PlatformFee decimal.Decimal `json:"platform_fee"`
	// TotalFee 钳位后的总手续费 (USDT)
	TotalFee decimal.Decimal `json:"total_fee"`
	// TotalAmount 链上划转总额 = OrderAmount + TotalFee
	TotalAmount decimal.Decimal `json:"total_amount"`
	// FeeLimitSun TRC20 交易的 fee_limit
	FeeLimitSun int64 `json:"fee_limit_sun"`
}

// FeeStats 费用配置与网络状态快照 (stats 端点)
type FeeStats struct {
	Percentage   decimal.Decimal     `json:"percentage"`
	MinUsdt      decimal.Decimal     `json:"min_usdt"`
	MaxUsdt      decimal.Decimal     `json:"max_usdt"`
	TrxUsdtRate  decimal.Decimal     `json:"trx_usdt_rate"`
	NetworkState *cache.NetworkState `json:"network_state,omitempty"`
}

// FeeService 费用引擎接口
type FeeService interface {
	// Quote 计算报价；能量估算实时获取，估算失败回退配置兜底值
	Quote(ctx context.Context, fromBase58 string, orderAmount decimal.Decimal) (*FeeQuote, error)

	// Stats 返回费用配置与缓存的网络状态
	Stats(ctx context.Context) *FeeStats
}

// feeService 费用引擎实现
// 全程 decimal 运算，最终按 6 位小数四舍五入 (half away from zero)
type feeService struct {
	rpc          client.TronRPC
	rateProvider RateProvider
	stateCache   cache.NetworkStateCache

	cfg      config.FeeConfig
	gridCfg  config.TronGridConfig
	contract string
	// masterAddr 能量估算的收款方 (估算参数需要一个真实地址)
	masterAddr string
}

// NewFeeService 创建费用引擎
func NewFeeService(
	rpc client.TronRPC,
	rateProvider RateProvider,
	stateCache cache.NetworkStateCache,
	cfg config.FeeConfig,
	gridCfg config.TronGridConfig,
	usdtContract string,
	masterAddr string,
) FeeService {
	return &feeService{
		rpc:          rpc,
		rateProvider: rateProvider,
		stateCache:   stateCache,
		cfg:          cfg,
		gridCfg:      gridCfg,
		contract:     usdtContract,
		masterAddr:   masterAddr,
	}
}

func (s *feeService) Quote(ctx context.Context, fromBase58 string, orderAmount decimal.Decimal) (*FeeQuote, error) {
	rate, err := s.rateProvider.TrxUsdtRate(ctx)
	if err != nil {
		return nil, mapRPCError(err)
	}

	energy := s.estimateEnergy(ctx, fromBase58, orderAmount)
	priceSun := s.energyPrice(ctx, rate)

	// gasTrx = energy × priceSun / 10^6
	gasTrx := decimal.NewFromInt(energy).Mul(decimal.NewFromInt(priceSun)).Div(sunPerTrx)
	// gasUsdt = gasTrx × rate
	gasUsdt := gasTrx.Mul(rate)
	// platformFee = orderAmount × percentage
	platformFee := orderAmount.Mul(s.cfg.Percentage)

	// totalFee = clamp(gasUsdt + platformFee, min, max)，末位 6 位四舍五入
	rawFee := gasUsdt.Add(platformFee)
	totalFee := clampDecimal(rawFee, s.cfg.MinUsdt, s.cfg.MaxUsdt).Round(usdtScale)
	totalAmount := orderAmount.Add(totalFee)

	feeLimit := decimal.NewFromInt(energy).
		Mul(decimal.NewFromInt(priceSun)).
		Mul(s.gridCfg.FeeLimitSafetyFactor).
		Ceil().IntPart()

	return &FeeQuote{
		OrderAmount:    orderAmount,
		EnergyEstimate: energy,
		EnergyPriceSun: priceSun,
		TrxUsdtRate:    rate,
		GasCostTrx:     gasTrx.Round(usdtScale),
		GasCostUsdt:    gasUsdt.Round(usdtScale),
		PlatformFee:    platformFee.Round(usdtScale),
		TotalFee:       totalFee,
		TotalAmount:    totalAmount,
		FeeLimitSun:    feeLimit,
	}, nil
}

func (s *feeService) Stats(ctx context.Context) *FeeStats {
	stats := &FeeStats{
		Percentage:  s.cfg.Percentage,
		MinUsdt:     s.cfg.MinUsdt,
		MaxUsdt:     s.cfg.MaxUsdt,
		TrxUsdtRate: s.cfg.TrxUsdtRate,
	}
	if s.stateCache != nil {
		if state, err := s.stateCache.Get(ctx); err == nil {
			stats.NetworkState = state
		}
	}
	return stats
}

// estimateEnergy 实时估算能量，失败回退配置兜底值
func (s *feeService) estimateEnergy(ctx context.Context, fromBase58 string, amount decimal.Decimal) int64 {
	parameter, err := s.transferParameter(amount)
	if err == nil {
		energy, rpcErr := s.rpc.EstimateEnergy(ctx, fromBase58, s.contract, parameter)
		if rpcErr == nil && energy > 0 {
			return energy
		}
		logger.Warn("energy estimate failed, using fallback",
			zap.Int64("fallback", s.gridCfg.FallbackEnergy),
			zap.Error(rpcErr))
	}
	return s.gridCfg.FallbackEnergy
}

// energyPrice 读取能量单价: 缓存 → 节点 → 配置兜底
// 成功查询后刷新缓存快照
func (s *feeService) energyPrice(ctx context.Context, rate decimal.Decimal) int64 {
	if s.stateCache != nil {
		if state, err := s.stateCache.Get(ctx); err == nil && state.EnergyPriceSun > 0 {
			return state.EnergyPriceSun
		} else if err != nil && !stderrors.Is(err, cache.ErrStateNotFound) {
			logger.Warn("network state cache read failed", zap.Error(err))
		}
	}

	price, err := s.rpc.GetEnergyPriceSun(ctx)
	if err != nil || price <= 0 {
		logger.Warn("energy price query failed, using configured value",
			zap.Int64("fallback_sun", s.gridCfg.EnergyPriceSun), zap.Error(err))
		return s.gridCfg.EnergyPriceSun
	}

	if s.stateCache != nil {
		if err := s.stateCache.Set(ctx, &cache.NetworkState{
			EnergyPriceSun: price,
			TrxUsdtRate:    rate,
		}); err != nil {
			logger.Warn("network state cache write failed", zap.Error(err))
		}
	}
	return price
}

// transferParameter 构造估算用的 transfer 参数 (收款方为主钱包)
// 估算接口的 parameter 不含 4 字节选择器
func (s *feeService) transferParameter(amount decimal.Decimal) (string, error) {
	master, err := tron.DecodeBase58(s.masterAddr)
	if err != nil {
		return "", err
	}
	units := amount.Shift(usdtScale).Round(0).BigInt()
	data := tron.EncodeTransferData(master, units)
	return hex.EncodeToString(data[4:]), nil
}

// clampDecimal 区间钳位
func clampDecimal(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
