package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateProvider TRX/USDT 汇率来源
// 费用引擎只要求汇率存在，不关心来源 (静态配置、外部行情等)
type RateProvider interface {
	TrxUsdtRate(ctx context.Context) (decimal.Decimal, error)
}

// StaticRateProvider 配置常量汇率
type StaticRateProvider struct {
	rate decimal.Decimal
}

// NewStaticRateProvider 创建静态汇率提供者
func NewStaticRateProvider(rate decimal.Decimal) *StaticRateProvider {
	return &StaticRateProvider{rate: rate}
}

// TrxUsdtRate 返回配置汇率
func (p *StaticRateProvider) TrxUsdtRate(ctx context.Context) (decimal.Decimal, error) {
	return p.rate, nil
}
