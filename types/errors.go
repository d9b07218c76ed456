package types

import "errors"

// Store sentinel errors. Adapters wrap these (with %w) around their
// backend-specific failures so the elector and callers can classify
// outcomes with errors.Is without knowing the backend.
var (
	// ErrStoreUnavailable indicates a transient store fault: network error,
	// timeout, throttling, server error. The operation may succeed if retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRecordExists indicates CreateIfAbsent found a record already present.
	// The caller lost the creation race.
	ErrRecordExists = errors.New("record already exists")

	// ErrVersionMismatch indicates ReplaceIfVersionMatches found a different
	// version than expected, or the record was gone. Another client wrote first.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrCorruptRecord indicates a stored payload could not be decoded as a
	// lease record. Reads surface it per-attempt; the caller retries later.
	ErrCorruptRecord = errors.New("corrupt lease record")
)

// Callback validation errors.
var (
	// ErrOnStartedLeadingRequired indicates Callbacks.OnStartedLeading is nil.
	ErrOnStartedLeadingRequired = errors.New("OnStartedLeading callback is required")

	// ErrOnStoppedLeadingRequired indicates Callbacks.OnStoppedLeading is nil.
	ErrOnStoppedLeadingRequired = errors.New("OnStoppedLeading callback is required")
)

// IsConflict reports whether err is a lost conditional write: either a
// creation race (ErrRecordExists) or a stale-version replacement
// (ErrVersionMismatch). Conflicts are normal protocol outcomes, not faults.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRecordExists) || errors.Is(err, ErrVersionMismatch)
}

// IsUnavailable reports whether err is a transient store fault worth retrying.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsCorrupt reports whether err is an undecodable stored record.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}
