package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 请求结果取值。
const (
	outcomeOK       = "ok"
	outcomeEmpty    = "empty"
	outcomeFallback = "fallback"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

type metrics struct {
	duration    prometheus.Histogram
	requests    *prometheus.CounterVec
	dataQuality *prometheus.CounterVec
	fallbacks   prometheus.Counter
}

// newMetrics 在 reg 上注册指标；reg 为 nil 时使用私有 Registry，不污染全局。
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &metrics{
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedrank_recommend_duration_seconds",
			Help:    "Duration of recommend calls in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrank_recommend_total",
			Help: "Total number of recommend calls by outcome",
		}, []string{"outcome"}),
		dataQuality: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrank_data_quality_total",
			Help: "Total number of strategy scores dropped to zero because of bad input data",
		}, []string{"strategy"}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "feedrank_fallback_total",
			Help: "Total number of zero-signal calls answered in input order",
		}),
	}
}
