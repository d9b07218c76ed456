package types

import "context"

// Version is an opaque revision token returned by a Store read or write.
// Its only use is to be passed back verbatim on a conditional replacement;
// callers must not parse, compare, or order Version values.
type Version string

// NoVersion is the zero Version, returned alongside absent records.
const NoVersion Version = ""

// Store is a versioned record store with conditional writes.
//
// The elector drives leader election through exactly three operations.
// A Store implementation must guarantee that — regardless of how many
// clients race — at most one CreateIfAbsent succeeds per absent key, and
// at most one ReplaceIfVersionMatches succeeds per version value. Those
// two guarantees are the entire safety foundation of the election; the
// elector adds no locking of its own.
//
// Implementations map their backend's failure modes onto the sentinel
// errors in this package (ErrRecordExists, ErrVersionMismatch,
// ErrStoreUnavailable, ErrCorruptRecord) so that the elector can react
// uniformly. Any error not wrapping one of the sentinels is treated as
// a transient store fault.
//
// All operations honor ctx cancellation and deadlines.
type Store interface {
	// Read fetches the record stored under key.
	//
	// Returns:
	//   - *LeaseRecord: Current record, or nil if no record exists
	//   - Version: Version of the returned record, or NoVersion if absent
	//   - error: ErrStoreUnavailable for transient faults, ErrCorruptRecord
	//     for undecodable payloads; a missing record is (nil, NoVersion, nil),
	//     not an error
	Read(ctx context.Context, key string) (*LeaseRecord, Version, error)

	// CreateIfAbsent atomically stores record under key only if no record
	// exists there.
	//
	// Returns:
	//   - Version: Version of the newly created record
	//   - error: ErrRecordExists if any record is already present (the caller
	//     lost the race), ErrStoreUnavailable for transient faults
	CreateIfAbsent(ctx context.Context, key string, record *LeaseRecord) (Version, error)

	// ReplaceIfVersionMatches atomically replaces the record under key only
	// if its current version equals version.
	//
	// Returns:
	//   - Version: New version after the successful replacement
	//   - error: ErrVersionMismatch if the stored version differs or the
	//     record no longer exists (someone else wrote first), ErrStoreUnavailable
	//     for transient faults
	ReplaceIfVersionMatches(ctx context.Context, key string, record *LeaseRecord, version Version) (Version, error)
}
