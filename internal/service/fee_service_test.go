package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/tron"
)

func testFeeConfig() config.FeeConfig {
	return config.FeeConfig{
		Percentage:  mustDecimal("0.01"),
		MinUsdt:     mustDecimal("0.5"),
		MaxUsdt:     mustDecimal("50"),
		TrxUsdtRate: mustDecimal("0.10"),
	}
}

func testGridConfig() config.TronGridConfig {
	return config.TronGridConfig{
		EnergyPriceSun:       420,
		FallbackEnergy:       31895,
		FeeLimitSafetyFactor: mustDecimal("1.3"),
	}
}

func newTestFeeService(t *testing.T, rpc *fakeTronRPC, cfg config.FeeConfig) (FeeService, *tron.Keypair) {
	t.Helper()
	master, err := tron.GenerateKeypair()
	require.NoError(t, err)

	fees := NewFeeService(
		rpc,
		NewStaticRateProvider(cfg.TrxUsdtRate),
		&staticState{},
		cfg,
		testGridConfig(),
		"TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs",
		master.Base58Address,
	)
	return fees, master
}

func TestFeeService_Quote_Breakdown(t *testing.T) {
	rpc := newFakeTronRPC()
	fees, _ := newTestFeeService(t, rpc, testFeeConfig())

	quote, err := fees.Quote(context.Background(), "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3", mustDecimal("100"))
	require.NoError(t, err)

	// gasTrx = 31895 × 420 / 10^6 = 13.3959
	assert.True(t, quote.GasCostTrx.Equal(mustDecimal("13.3959")), "gasTrx = %s", quote.GasCostTrx)
	// gasUsdt = 13.3959 × 0.10 = 1.33959
	assert.True(t, quote.GasCostUsdt.Equal(mustDecimal("1.33959")), "gasUsdt = %s", quote.GasCostUsdt)
	// platformFee = 100 × 0.01 = 1
	assert.True(t, quote.PlatformFee.Equal(mustDecimal("1")), "platformFee = %s", quote.PlatformFee)
	// totalFee = clamp(1.33959 + 1, 0.5, 50) = 2.33959
	assert.True(t, quote.TotalFee.Equal(mustDecimal("2.33959")), "totalFee = %s", quote.TotalFee)
	assert.True(t, quote.TotalAmount.Equal(mustDecimal("102.33959")), "totalAmount = %s", quote.TotalAmount)

	// 明细可复现计算
	recomputed := quote.GasCostUsdt.Add(quote.PlatformFee)
	assert.True(t, quote.TotalFee.Equal(recomputed.Round(6)))
	assert.True(t, quote.TotalAmount.Equal(quote.OrderAmount.Add(quote.TotalFee)))

	// fee_limit = energy × price × 1.3
	assert.Equal(t, int64(17414670), quote.FeeLimitSun)
}

func TestFeeService_Quote_MinClamp(t *testing.T) {
	cfg := testFeeConfig()
	cfg.MinUsdt = mustDecimal("5")

	rpc := newFakeTronRPC()
	rpc.energyEstimate = 1000 // gasUsdt = 1000×420/1e6×0.10 = 0.042
	fees, _ := newTestFeeService(t, rpc, cfg)

	quote, err := fees.Quote(context.Background(), "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3", mustDecimal("1"))
	require.NoError(t, err)

	// rawFee = 0.042 + 0.01 < min → totalFee = min
	assert.True(t, quote.TotalFee.Equal(mustDecimal("5")), "totalFee = %s", quote.TotalFee)
}

func TestFeeService_Quote_MaxClamp(t *testing.T) {
	rpc := newFakeTronRPC()
	fees, _ := newTestFeeService(t, rpc, testFeeConfig())

	// platformFee = 100000 × 0.01 = 1000 > max 50
	quote, err := fees.Quote(context.Background(), "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3", mustDecimal("100000"))
	require.NoError(t, err)

	assert.True(t, quote.TotalFee.Equal(mustDecimal("50")))
	assert.True(t, quote.TotalAmount.Equal(mustDecimal("100050")))
}

func TestFeeService_Quote_ClampLaw(t *testing.T) {
	rpc := newFakeTronRPC()
	cfg := testFeeConfig()
	fees, _ := newTestFeeService(t, rpc, cfg)

	// 任意非负输入满足 totalFee == clamp(gasUsdt+platformFee, min, max)
	for _, amount := range []string{"0.000001", "1", "49.5", "100", "5000", "999999"} {
		quote, err := fees.Quote(context.Background(), "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3", mustDecimal(amount))
		require.NoError(t, err)

		raw := quote.GasCostUsdt.Add(quote.PlatformFee)
		expected := clampDecimal(raw, cfg.MinUsdt, cfg.MaxUsdt).Round(6)
		assert.True(t, quote.TotalFee.Equal(expected), "amount %s: totalFee %s != %s", amount, quote.TotalFee, expected)
		assert.True(t, quote.TotalFee.GreaterThanOrEqual(cfg.MinUsdt))
		assert.True(t, quote.TotalFee.LessThanOrEqual(cfg.MaxUsdt))
	}
}

func TestFeeService_Quote_EstimateFallback(t *testing.T) {
	rpc := newFakeTronRPC()
	rpc.estimateErr = assert.AnError
	fees, _ := newTestFeeService(t, rpc, testFeeConfig())

	quote, err := fees.Quote(context.Background(), "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3", mustDecimal("100"))
	require.NoError(t, err)

	// 估算失败回退配置兜底能量
	assert.Equal(t, int64(31895), quote.EnergyEstimate)
	assert.True(t, quote.TotalFee.GreaterThan(decimal.Zero))
}

func TestFeeService_Stats(t *testing.T) {
	rpc := newFakeTronRPC()
	fees, _ := newTestFeeService(t, rpc, testFeeConfig())

	// 报价一次后网络状态被缓存
	_, err := fees.Quote(context.Background(), "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3", mustDecimal("100"))
	require.NoError(t, err)

	stats := fees.Stats(context.Background())
	assert.True(t, stats.Percentage.Equal(mustDecimal("0.01")))
	require.NotNil(t, stats.NetworkState)
	assert.Equal(t, int64(420), stats.NetworkState.EnergyPriceSun)
}
