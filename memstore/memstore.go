// Package memstore provides an in-memory implementation of the objelect
// record store.
//
// It is the reference substrate for tests and a production-grade choice for
// coordinating electors within a single process (for example, several
// independent components contending for in-process singleton roles).
// Records never leave the process; cross-process election needs one of the
// networked adapters.
package memstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/objelect/objelect/types"
)

// entry is an immutable record snapshot. Writers install a fresh entry on
// every successful write; readers never see partial state.
type entry struct {
	record  types.LeaseRecord
	version types.Version
}

// Store is an in-memory types.Store with conditional-write semantics.
//
// Reads are lock-free via xsync.Map; the two conditional writes serialize on
// a store-level mutex, which is what makes "check then install" atomic and
// yields the single-winner guarantee.
type Store struct {
	mu      sync.Mutex // serializes conditional writes
	entries *xsync.Map[string, *entry]
	seq     atomic.Uint64
}

// Compile-time assertion that Store implements types.Store.
var _ types.Store = (*Store)(nil)

// New creates an empty in-memory store.
//
// Returns:
//   - *Store: Ready-to-use store instance
//
// Example:
//
//	store := memstore.New()
//	elector, _ := objelect.New(cfg, store)
func New() *Store {
	return &Store{
		entries: xsync.NewMap[string, *entry](),
	}
}

// Read implements types.Store.
func (s *Store) Read(ctx context.Context, key string) (*types.LeaseRecord, types.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NoVersion, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	e, ok := s.entries.Load(key)
	if !ok {
		return nil, types.NoVersion, nil
	}

	rec := e.record // copy out of the immutable entry

	return &rec, e.version, nil
}

// CreateIfAbsent implements types.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, key string, record *types.LeaseRecord) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries.Load(key); ok {
		return types.NoVersion, fmt.Errorf("%w: key %q", types.ErrRecordExists, key)
	}

	ver := s.nextVersion()
	s.entries.Store(key, &entry{record: *record.Clone(), version: ver})

	return ver, nil
}

// ReplaceIfVersionMatches implements types.Store.
func (s *Store) ReplaceIfVersionMatches(ctx context.Context, key string, record *types.LeaseRecord, version types.Version) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries.Load(key)
	if !ok {
		return types.NoVersion, fmt.Errorf("%w: key %q does not exist", types.ErrVersionMismatch, key)
	}
	if cur.version != version {
		return types.NoVersion, fmt.Errorf("%w: key %q at %s, expected %s",
			types.ErrVersionMismatch, key, cur.version, version)
	}

	ver := s.nextVersion()
	s.entries.Store(key, &entry{record: *record.Clone(), version: ver})

	return ver, nil
}

// Delete removes the record under key. Not part of the types.Store contract;
// provided for test harness cleanup between scenarios.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.LoadAndDelete(key)
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(string, *entry) bool {
		n++
		return true
	})

	return n
}

// nextVersion mints a store-unique monotonic version. Callers must treat it
// as opaque.
func (s *Store) nextVersion() types.Version {
	return types.Version(strconv.FormatUint(s.seq.Add(1), 10))
}
