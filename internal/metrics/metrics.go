// Package metrics 定义网关监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal 出账转账总数，按终态分组
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "transfers_total",
			Help:      "出账转账总数，按最终状态(confirmed/failed/pending_timeout)分组",
		},
		[]string{"status"},
	)

	// TransferLatency 转账端到端处理延迟
	TransferLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "transfer_latency_seconds",
			Help:      "转账处理延迟(秒)，按阶段(sponsor/confirm)分组",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
		},
		[]string{"stage"},
	)

	// TransferVolume 确认转账总金额 (USDT)
	TransferVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "transfer_volume_usdt_total",
			Help:      "已确认转账的 USDT 总金额",
		},
	)

	// FeesCollected 收取手续费总额 (USDT)
	FeesCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "fees_collected_usdt_total",
			Help:      "已确认转账冻结的手续费 USDT 总额",
		},
	)

	// SponsorshipsTotal TRX 赞助次数
	SponsorshipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "sponsorships_total",
			Help:      "主钱包 TRX 赞助次数，按结果(ok/failed)分组",
		},
		[]string{"result"},
	)

	// ActivationsTotal 钱包激活次数
	ActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "wallet_activations_total",
			Help:      "钱包激活次数，按结果(ok/failed/skipped)分组",
		},
		[]string{"result"},
	)

	// WalletsCreated 创建钱包总数
	WalletsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "wallets_created_total",
			Help:      "生成并落库的钱包总数",
		},
	)

	// RPCRequests TronGrid 请求计数
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "trongrid",
			Name:      "requests_total",
			Help:      "TronGrid 请求总数，按端点和结果分组",
		},
		[]string{"endpoint", "result"},
	)

	// RPCLatency TronGrid 请求延迟
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tronpay",
			Subsystem: "trongrid",
			Name:      "request_latency_seconds",
			Help:      "TronGrid 请求延迟(秒)，按端点分组",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"endpoint"},
	)

	// IncomingDetected 检测到的入账交易数
	IncomingDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "gateway",
			Name:      "incoming_detected_total",
			Help:      "扫描器检测到的入账 TRC20 交易总数",
		},
	)
)
