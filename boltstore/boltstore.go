// Package boltstore provides a bbolt-backed implementation of the objelect
// record store.
//
// bbolt serializes all writes through a single update transaction, which
// makes the check-then-install of both conditional operations atomic. The
// adapter is a good fit for single-machine deployments: several processes
// cannot share one bbolt file, but several electors inside one process can,
// and leases survive process restarts.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/objelect/objelect/types"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "objelect"

// envelope wraps a lease record with the version counter that backs
// conditional replacement.
type envelope struct {
	Version uint64          `json:"version"`
	Record  json.RawMessage `json:"record"`
}

// Store is a bbolt-backed types.Store.
type Store struct {
	db     *bolt.DB
	bucket []byte
	owned  bool
}

// Compile-time assertion that Store implements types.Store.
var _ types.Store = (*Store)(nil)

// Open opens (creating if needed) a bbolt database file and returns a store
// writing into bucket. An empty bucket name selects DefaultBucket.
//
// Parameters:
//   - path: Database file path
//   - bucket: Bucket name, the namespace for election keys
//
// Returns:
//   - *Store: Ready-to-use store; Close releases the file
//   - error: File open or bucket creation failure
//
// Example:
//
//	store, err := boltstore.Open("/var/lib/app/elections.db", "elections")
//	if err != nil { ... }
//	defer store.Close()
func Open(path, bucket string) (*Store, error) {
	db, err := bolt.Open(path, os.FileMode(0o600), &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}

	store, err := New(db, bucket)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true

	return store, nil
}

// New wraps an already-open bbolt database. The caller keeps ownership of
// db; Close on the returned store is then a no-op.
//
// Parameters:
//   - db: Open bbolt database
//   - bucket: Bucket name, the namespace for election keys (empty selects DefaultBucket)
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: Bucket creation failure
func New(db *bolt.DB, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	name := []byte(bucket)
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	return &Store{db: db, bucket: name}, nil
}

// Close closes the underlying database if this store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}

	return s.db.Close()
}

// Read implements types.Store.
func (s *Store) Read(ctx context.Context, key string) (*types.LeaseRecord, types.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NoVersion, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	var (
		rec *types.LeaseRecord
		ver types.Version
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}

		env, err := decodeEnvelope(raw)
		if err != nil {
			return err
		}

		decoded, err := types.DecodeLeaseRecord(env.Record)
		if err != nil {
			return err
		}

		rec = decoded
		ver = formatVersion(env.Version)

		return nil
	})
	if err != nil {
		if types.IsCorrupt(err) {
			return nil, types.NoVersion, err
		}

		return nil, types.NoVersion, fmt.Errorf("%w: read %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return rec, ver, nil
}

// CreateIfAbsent implements types.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, key string, record *types.LeaseRecord) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	data, err := types.EncodeLeaseRecord(record)
	if err != nil {
		return types.NoVersion, err
	}

	const initialVersion = 1
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket.Get([]byte(key)) != nil {
			return fmt.Errorf("%w: key %q", types.ErrRecordExists, key)
		}

		return bucket.Put([]byte(key), encodeEnvelope(initialVersion, data))
	})
	if err != nil {
		if types.IsConflict(err) {
			return types.NoVersion, err
		}

		return types.NoVersion, fmt.Errorf("%w: create %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return formatVersion(initialVersion), nil
}

// ReplaceIfVersionMatches implements types.Store.
func (s *Store) ReplaceIfVersionMatches(ctx context.Context, key string, record *types.LeaseRecord, version types.Version) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	data, err := types.EncodeLeaseRecord(record)
	if err != nil {
		return types.NoVersion, err
	}

	var newVer types.Version
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: key %q does not exist", types.ErrVersionMismatch, key)
		}

		env, err := decodeEnvelope(raw)
		if err != nil {
			return err
		}
		if formatVersion(env.Version) != version {
			return fmt.Errorf("%w: key %q at %d, expected %s",
				types.ErrVersionMismatch, key, env.Version, version)
		}

		next := env.Version + 1
		if err := bucket.Put([]byte(key), encodeEnvelope(next, data)); err != nil {
			return err
		}
		newVer = formatVersion(next)

		return nil
	})
	if err != nil {
		if types.IsConflict(err) || types.IsCorrupt(err) {
			return types.NoVersion, err
		}

		return types.NoVersion, fmt.Errorf("%w: replace %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return newVer, nil
}

// encodeEnvelope builds the stored byte form. Marshal of a RawMessage-bearing
// struct cannot fail, so the error is dropped.
func encodeEnvelope(version uint64, record []byte) []byte {
	out, _ := json.Marshal(envelope{Version: version, Record: record})
	return out
}

// decodeEnvelope parses the stored byte form.
func decodeEnvelope(raw []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %w", types.ErrCorruptRecord, err)
	}

	return &env, nil
}

// formatVersion renders the envelope counter as an opaque version token.
func formatVersion(v uint64) types.Version {
	return types.Version(strconv.FormatUint(v, 10))
}
