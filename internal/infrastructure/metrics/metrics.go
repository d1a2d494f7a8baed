package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 资金操作结果标签
const (
	ResultCommitted = "committed"
	ResultAborted   = "aborted"
	ResultUnknown   = "unknown"
)

// 消息投递结果标签
const (
	OutboxSent     = "sent"
	OutboxRetry    = "retry"
	OutboxFailed   = "failed"
	OutboxDeferred = "deferred" // 熔断打开，本轮未发送
)

// Recorder 资金引擎与消息投递上报指标的接口
type Recorder interface {
	ObserveOperation(operation, result string, duration time.Duration)
	IncConflictRetry(operation string)
	IncOutboxPublished(result string)
}

// NoopRecorder 不上报任何指标
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperation(string, string, time.Duration) {}
func (NoopRecorder) IncConflictRetry(string)                        {}
func (NoopRecorder) IncOutboxPublished(string)                      {}

type FundsMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	conflictRetries   *prometheus.CounterVec
	outboxPublished   *prometheus.CounterVec
}

// NewFundsMetrics 在 reg 上注册指标，reg 为 nil 时使用默认注册表
func NewFundsMetrics(reg prometheus.Registerer) *FundsMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &FundsMetrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtualbank",
				Subsystem: "funds",
				Name:      "operations_total",
				Help:      "Total funds operations partitioned by operation and result.",
			},
			[]string{"operation", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "virtualbank",
				Subsystem: "funds",
				Name:      "operation_duration_seconds",
				Help:      "Latency of funds operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		conflictRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtualbank",
				Subsystem: "funds",
				Name:      "conflict_retries_total",
				Help:      "Optimistic update conflicts that triggered a retry.",
			},
			[]string{"operation"},
		),
		outboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtualbank",
				Subsystem: "outbox",
				Name:      "published_total",
				Help:      "Outbox messages handed to the broker partitioned by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *FundsMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *FundsMetrics) IncConflictRetry(operation string) {
	m.conflictRetries.WithLabelValues(operation).Inc()
}

func (m *FundsMetrics) IncOutboxPublished(result string) {
	m.outboxPublished.WithLabelValues(result).Inc()
}
