package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// LeaseRecord is the leadership lease payload stored under an election key.
//
// Exactly one record exists per election key at any store-observed instant;
// the store's conditional-write primitives are the sole enforcement point of
// that invariant. The record is created when no record exists (or an expired
// one is superseded), mutated only by the current holder via conditional
// replacement, and never deleted in normal operation — a release clears
// HolderIdentity, and an expired record is simply taken over.
//
// Wire format is a single JSON object per key:
//
//	{
//	    "holderIdentity": "api-7f6d-b2c4",
//	    "leaseDuration": "45s",
//	    "acquireTime": "2025-08-25T10:00:00Z",
//	    "renewTime": "2025-08-25T10:00:30Z",
//	    "leaderTransitions": 3
//	}
type LeaseRecord struct {
	// HolderIdentity is the identity of the node currently claiming leadership.
	// Empty means the lease is unclaimed (released or never acquired).
	HolderIdentity string

	// LeaseDuration is how long the lease stays valid without a renewal.
	LeaseDuration time.Duration

	// AcquireTime is when the current holder first took leadership.
	// It is unchanged across renewals by the same holder.
	AcquireTime time.Time

	// RenewTime is the time of the last successful renewal.
	// Updated on every confirmed renew.
	RenewTime time.Time

	// LeaderTransitions counts how many times the holder identity has
	// changed hands. Monotonically non-decreasing.
	LeaderTransitions uint32
}

// leaseRecordJSON is the serialized shape of LeaseRecord. LeaseDuration
// travels as a Go duration string ("45s"), timestamps as RFC3339.
type leaseRecordJSON struct {
	HolderIdentity    string    `json:"holderIdentity"`
	LeaseDuration     string    `json:"leaseDuration"`
	AcquireTime       time.Time `json:"acquireTime"`
	RenewTime         time.Time `json:"renewTime"`
	LeaderTransitions uint32    `json:"leaderTransitions"`
}

// MarshalJSON implements json.Marshaler.
func (r LeaseRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(leaseRecordJSON{
		HolderIdentity:    r.HolderIdentity,
		LeaseDuration:     r.LeaseDuration.String(),
		AcquireTime:       r.AcquireTime,
		RenewTime:         r.RenewTime,
		LeaderTransitions: r.LeaderTransitions,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *LeaseRecord) UnmarshalJSON(data []byte) error {
	var aux leaseRecordJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var dur time.Duration
	if aux.LeaseDuration != "" {
		parsed, err := time.ParseDuration(aux.LeaseDuration)
		if err != nil {
			return fmt.Errorf("invalid leaseDuration %q: %w", aux.LeaseDuration, err)
		}
		dur = parsed
	}

	r.HolderIdentity = aux.HolderIdentity
	r.LeaseDuration = dur
	r.AcquireTime = aux.AcquireTime
	r.RenewTime = aux.RenewTime
	r.LeaderTransitions = aux.LeaderTransitions

	return nil
}

// EncodeLeaseRecord serializes a record to its wire form.
//
// Returns:
//   - []byte: JSON encoding of the record
//   - error: ErrCorruptRecord-wrapped encoding failure
func EncodeLeaseRecord(rec *LeaseRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrCorruptRecord, err)
	}

	return data, nil
}

// DecodeLeaseRecord parses a record from its wire form.
//
// A decode failure is reported as ErrCorruptRecord; callers treat it as a
// per-read fault and retry on the next cycle rather than crashing the loop.
//
// Returns:
//   - *LeaseRecord: Decoded record
//   - error: ErrCorruptRecord-wrapped decoding failure
func DecodeLeaseRecord(data []byte) (*LeaseRecord, error) {
	var rec LeaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrCorruptRecord, err)
	}

	return &rec, nil
}

// HasHolder reports whether the record names a current holder.
func (r *LeaseRecord) HasHolder() bool {
	return r != nil && r.HolderIdentity != ""
}

// HeldBy reports whether identity is the record's current holder.
func (r *LeaseRecord) HeldBy(identity string) bool {
	return r != nil && identity != "" && r.HolderIdentity == identity
}

// Expired reports whether the lease has lapsed at the given instant:
// now is after RenewTime + LeaseDuration.
//
// A nil or holderless record is not "expired" — it is unclaimed, which
// eligibility checks handle separately.
func (r *LeaseRecord) Expired(now time.Time) bool {
	if r == nil {
		return false
	}

	return now.After(r.RenewTime.Add(r.LeaseDuration))
}

// Clone returns a deep copy, or nil for a nil receiver.
func (r *LeaseRecord) Clone() *LeaseRecord {
	if r == nil {
		return nil
	}
	cp := *r

	return &cp
}
