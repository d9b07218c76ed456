package types

import "context"

// Callbacks are the leadership transition notifications delivered by an
// elector. All callbacks are invoked synchronously on the elector's own
// goroutine: a slow callback delays lease renewal, so long-running leader
// work must be moved onto goroutines keyed off the context passed to
// OnStartedLeading.
type Callbacks struct {
	// OnStartedLeading is invoked once each time this elector acquires
	// leadership. The context stays live for the duration of the leadership
	// session and is canceled when leadership is lost or the elector stops.
	// Required.
	OnStartedLeading func(ctx context.Context)

	// OnStoppedLeading is invoked exactly once per leadership session after
	// leadership ends, whether by losing the lease, failing to renew before
	// the deadline, or shutting down. Required.
	OnStoppedLeading func()

	// OnNewLeader is invoked when the observed leader identity changes,
	// including when this elector itself becomes leader. It never fires
	// twice in a row for the same identity and never fires for an empty
	// holder. Optional.
	OnNewLeader func(identity string)
}

// Validate checks that the required callbacks are set.
//
// Returns:
//   - error: Describes the first missing required callback, or nil
func (c *Callbacks) Validate() error {
	if c.OnStartedLeading == nil {
		return ErrOnStartedLeadingRequired
	}
	if c.OnStoppedLeading == nil {
		return ErrOnStoppedLeadingRequired
	}

	return nil
}
