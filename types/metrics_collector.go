package types

import "time"

// MetricsCollector receives elector and store instrumentation events.
//
// Implementations must be safe for concurrent use and must never block:
// collectors are invoked inline from the election loop. The library ships
// two implementations: a no-op collector (the default) and a Prometheus
// collector in internal/metrics.
type MetricsCollector interface {
	// RecordStateTransition records an elector state change.
	RecordStateTransition(from, to State)

	// RecordLeadershipChange records an observed change of leader identity
	// for the election key.
	RecordLeadershipChange(key, holder string)

	// RecordAcquireAttempt records one acquisition attempt and whether it won.
	RecordAcquireAttempt(key string, won bool)

	// RecordRenewal records one renewal attempt and whether it succeeded.
	RecordRenewal(key string, ok bool)

	// RecordStoreOperation records the duration and outcome of a single
	// store call. op is one of "read", "create", "replace".
	RecordStoreOperation(op string, duration time.Duration, err error)

	// SetLeading records whether this elector currently holds leadership.
	SetLeading(key string, leading bool)
}
