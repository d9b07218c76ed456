package objelect

import "errors"

// Sentinel errors returned by the Elector.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreRequired is returned when the lease store is nil.
	ErrStoreRequired = errors.New("lease store is required")

	// ErrElectionKeyRequired is returned when ElectionKey is empty.
	ErrElectionKeyRequired = errors.New("election key is required")

	// ErrAlreadyStarted is returned when Start is called on an already running elector.
	ErrAlreadyStarted = errors.New("elector already started")

	// ErrNotStarted is returned when Stop is called on an elector that hasn't been started.
	ErrNotStarted = errors.New("elector not started")
)
