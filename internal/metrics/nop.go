package metrics

import (
	"time"

	"github.com/objelect/objelect/types"
)

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	elector := objelect.New(&cfg, store, objelect.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {
	// No-op
}

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* key */, _ /* holder */ string) {
	// No-op
}

// RecordAcquireAttempt discards the acquire attempt metric.
func (n *NopMetrics) RecordAcquireAttempt(_ /* key */ string, _ /* won */ bool) {
	// No-op
}

// RecordRenewal discards the renewal metric.
func (n *NopMetrics) RecordRenewal(_ /* key */ string, _ /* ok */ bool) {
	// No-op
}

// RecordStoreOperation discards the store operation metric.
func (n *NopMetrics) RecordStoreOperation(_ /* op */ string, _ /* duration */ time.Duration, _ /* err */ error) {
	// No-op
}

// SetLeading discards the leading status metric.
func (n *NopMetrics) SetLeading(_ /* key */ string, _ /* leading */ bool) {
	// No-op
}
