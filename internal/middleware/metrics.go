package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tronpay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP 请求总数，按方法、路由、状态类分组",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tronpay",
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP 请求延迟(秒)，按路由分组",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"route"},
	)
)
