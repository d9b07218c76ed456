package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/objelect/objelect/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metric registration is deferred until first use, so constructing a
// collector never touches the registry; an unused collector can share a
// registerer with another instance without a duplicate registration panic.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions  *prometheus.CounterVec
	leadershipChanges *prometheus.CounterVec
	acquireAttempts   *prometheus.CounterVec
	renewals          *prometheus.CounterVec
	storeOpDuration   *prometheus.HistogramVec
	leadingGauge      *prometheus.GaugeVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "objelect" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "objelect"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "state_transitions_total",
			Help:      "Total elector state transitions by from/to state.",
		}, []string{"from", "to"})

		p.leadershipChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "leadership_changes_total",
			Help:      "Total observed leader identity changes per election key.",
		}, []string{"key"})

		p.acquireAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "acquire_attempts_total",
			Help:      "Total lease acquisition attempts by result (won|lost).",
		}, []string{"key", "result"})

		p.renewals = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "renewals_total",
			Help:      "Total lease renewal attempts by result (ok|failed).",
		}, []string{"key", "result"})

		p.storeOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations by op (read|create|replace) and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}, []string{"op", "outcome"})

		p.leadingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "leading",
			Help:      "Whether this elector currently holds leadership (1) or not (0).",
		}, []string{"key"})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.leadershipChanges)
		p.reg.MustRegister(p.acquireAttempts)
		p.reg.MustRegister(p.renewals)
		p.reg.MustRegister(p.storeOpDuration)
		p.reg.MustRegister(p.leadingGauge)
	})
}

// RecordStateTransition increments the from/to transition counter.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordLeadershipChange increments the leadership change counter for key.
//
// The holder identity is intentionally not a label: identities are often
// host-scoped and would blow up cardinality.
func (p *PrometheusCollector) RecordLeadershipChange(key string, _ /* holder */ string) {
	p.ensureRegistered()
	p.leadershipChanges.WithLabelValues(key).Inc()
}

// RecordAcquireAttempt increments the acquire attempt counter by result.
func (p *PrometheusCollector) RecordAcquireAttempt(key string, won bool) {
	p.ensureRegistered()
	result := "lost"
	if won {
		result = "won"
	}
	p.acquireAttempts.WithLabelValues(key, result).Inc()
}

// RecordRenewal increments the renewal counter by result.
func (p *PrometheusCollector) RecordRenewal(key string, ok bool) {
	p.ensureRegistered()
	result := "failed"
	if ok {
		result = "ok"
	}
	p.renewals.WithLabelValues(key, result).Inc()
}

// RecordStoreOperation observes a store call latency by op and outcome.
func (p *PrometheusCollector) RecordStoreOperation(op string, duration time.Duration, err error) {
	p.ensureRegistered()
	p.storeOpDuration.WithLabelValues(op, storeOutcome(err)).Observe(duration.Seconds())
}

// SetLeading sets the leading gauge for key.
func (p *PrometheusCollector) SetLeading(key string, leading bool) {
	p.ensureRegistered()
	val := 0.0
	if leading {
		val = 1.0
	}
	p.leadingGauge.WithLabelValues(key).Set(val)
}

// storeOutcome maps a store error onto a bounded outcome label.
func storeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case types.IsConflict(err):
		return "conflict"
	case types.IsUnavailable(err):
		return "unavailable"
	case types.IsCorrupt(err):
		return "corrupt"
	default:
		return "error"
	}
}
