package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"arakoon-deploy-backend/internal/pkg/arakoon"
)

const (
	namespace = "arakoon"

	LabelSuccess     = "success"
	LabelError       = "error"
	LabelUnavailable = "unavailable"
)

// Metrics counts orchestration operations and readiness probes.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ProbeAttempts     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Count of cluster operations by result",
		}, []string{"operation", "result"}),

		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Histogram of times spent running cluster operations",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"operation"}),

		ProbeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_attempts_total",
			Help:      "Count of readiness probe attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Operations,
		m.OperationDuration,
		m.ProbeAttempts,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.PrometheusCollectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation string, started time.Time, err error) {
	result := LabelSuccess
	if err != nil {
		result = LabelError
	}
	m.Operations.WithLabelValues(operation, result).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ProbeAttempt implements arakoon.ProbeObserver.
func (m *Metrics) ProbeAttempt(_ string, err error) {
	switch {
	case err == nil:
		m.ProbeAttempts.WithLabelValues(LabelSuccess).Inc()
	case errors.Is(err, arakoon.ErrNoBytesRead):
		m.ProbeAttempts.WithLabelValues(LabelUnavailable).Inc()
	default:
		m.ProbeAttempts.WithLabelValues(LabelError).Inc()
	}
}

var _ arakoon.ProbeObserver = (*Metrics)(nil)
