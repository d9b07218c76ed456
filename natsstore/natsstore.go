// Package natsstore provides a NATS JetStream KV implementation of the
// objelect record store.
//
// JetStream KV gives exactly the two conditional primitives the elector
// needs: Create is atomic create-if-absent, and Update carries an expected
// revision that the server enforces. The store revision doubles as the
// opaque version token.
//
// Lease expiry is logical (renewTime + leaseDuration), so election buckets
// must NOT set a TTL: a TTL would physically delete the record and erase
// the leader transition history the protocol carries forward.
package natsstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/objelect/objelect/types"
)

// Store is a JetStream KV-backed types.Store.
type Store struct {
	kv jetstream.KeyValue
}

// Compile-time assertion that Store implements types.Store.
var _ types.Store = (*Store)(nil)

// New wraps an existing KV bucket.
//
// Parameters:
//   - kv: JetStream KV bucket holding election keys
//
// Returns:
//   - *Store: Ready-to-use store instance
//
// Example:
//
//	kv, _ := js.KeyValue(ctx, "elections")
//	store := natsstore.New(kv)
func New(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv}
}

// OpenBucket creates or opens the named KV bucket and returns a store on it.
//
// Creation races between concurrently starting electors are handled: if the
// bucket appears between the create attempt and now, the existing bucket is
// opened instead, with a short exponential backoff between attempts.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - bucket: Bucket name, the namespace for election keys
//
// Returns:
//   - *Store: Store on the (possibly pre-existing) bucket
//   - error: Creation/open failure after retries
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	store, err := natsstore.OpenBucket(ctx, js, "elections")
func OpenBucket(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	const maxRetries = 3

	config := jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "objelect leader election leases",
		History:     1,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return New(kv), nil
		}

		// If the bucket already exists, just open it
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, bucket)
			if err == nil {
				return New(kv), nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: open bucket %s: %w", types.ErrStoreUnavailable, bucket, ctx.Err())
		}

		// Exponential backoff: 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: open bucket %s: %w", types.ErrStoreUnavailable, bucket, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("%w: open bucket %s after %d attempts: %w",
		types.ErrStoreUnavailable, bucket, maxRetries, lastErr)
}

// Read implements types.Store.
func (s *Store) Read(ctx context.Context, key string) (*types.LeaseRecord, types.Version, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, types.NoVersion, nil
		}

		return nil, types.NoVersion, fmt.Errorf("%w: read %q: %w", types.ErrStoreUnavailable, key, err)
	}

	rec, err := types.DecodeLeaseRecord(entry.Value())
	if err != nil {
		return nil, types.NoVersion, err
	}

	return rec, formatRevision(entry.Revision()), nil
}

// CreateIfAbsent implements types.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, key string, record *types.LeaseRecord) (types.Version, error) {
	data, err := types.EncodeLeaseRecord(record)
	if err != nil {
		return types.NoVersion, err
	}

	rev, err := s.kv.Create(ctx, key, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return types.NoVersion, fmt.Errorf("%w: key %q", types.ErrRecordExists, key)
		}

		return types.NoVersion, fmt.Errorf("%w: create %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return formatRevision(rev), nil
}

// ReplaceIfVersionMatches implements types.Store.
func (s *Store) ReplaceIfVersionMatches(ctx context.Context, key string, record *types.LeaseRecord, version types.Version) (types.Version, error) {
	rev, err := parseRevision(version)
	if err != nil {
		// A token this store never minted cannot match any revision.
		return types.NoVersion, fmt.Errorf("%w: key %q: unusable version %q", types.ErrVersionMismatch, key, version)
	}

	data, err := types.EncodeLeaseRecord(record)
	if err != nil {
		return types.NoVersion, err
	}

	newRev, err := s.kv.Update(ctx, key, data, rev)
	if err != nil {
		if isRevisionConflict(err) {
			return types.NoVersion, fmt.Errorf("%w: key %q at revision %d", types.ErrVersionMismatch, key, rev)
		}

		return types.NoVersion, fmt.Errorf("%w: replace %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return formatRevision(newRev), nil
}

// isRevisionConflict reports whether err is the server rejecting a write for
// a stale expected revision (or a vanished key).
//
// JetStream surfaces both as the wrong-last-sequence API error; nats.go also
// aliases it behind ErrKeyExists for Create, so both checks are needed
// across client versions.
func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) || errors.Is(err, jetstream.ErrKeyNotFound) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

// formatRevision renders a KV revision as an opaque version token.
func formatRevision(rev uint64) types.Version {
	return types.Version(strconv.FormatUint(rev, 10))
}

// parseRevision recovers the KV revision from a version token.
func parseRevision(version types.Version) (uint64, error) {
	return strconv.ParseUint(string(version), 10, 64)
}
