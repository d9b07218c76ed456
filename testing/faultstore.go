package testing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/objelect/objelect/types"
)

// FaultStore wraps a types.Store with switchable error injection and
// per-operation counters. Elector failure-path tests use it to simulate
// store outages and takeovers without a real backend misbehaving on cue.
//
// All methods are safe for concurrent use. Injected failures also count
// as attempts, so tests can assert retry behavior.
//
// Example:
//
//	store := objtest.NewFaultStore(memstore.New())
//	store.FailReplaces(types.ErrStoreUnavailable)
//	// ... elector misses renewals and self-demotes ...
//	store.FailReplaces(nil) // heal
type FaultStore struct {
	inner types.Store

	mu         sync.Mutex
	readErr    error
	createErr  error
	replaceErr error

	reads    atomic.Int64
	creates  atomic.Int64
	replaces atomic.Int64
}

// Compile-time assertion that FaultStore implements Store.
var _ types.Store = (*FaultStore)(nil)

// NewFaultStore wraps inner with error injection.
//
// Parameters:
//   - inner: The real store to delegate to when no fault is armed
//
// Returns:
//   - *FaultStore: The wrapping store
func NewFaultStore(inner types.Store) *FaultStore {
	return &FaultStore{inner: inner}
}

// FailReads arms (or, with nil, disarms) an error for all Read calls.
func (f *FaultStore) FailReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// FailCreates arms (or, with nil, disarms) an error for all CreateIfAbsent calls.
func (f *FaultStore) FailCreates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// FailReplaces arms (or, with nil, disarms) an error for all ReplaceIfVersionMatches calls.
func (f *FaultStore) FailReplaces(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceErr = err
}

// FailAll arms the same error on every operation; nil heals everything.
func (f *FaultStore) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
	f.createErr = err
	f.replaceErr = err
}

// Reads returns the number of Read attempts observed.
func (f *FaultStore) Reads() int64 { return f.reads.Load() }

// Creates returns the number of CreateIfAbsent attempts observed.
func (f *FaultStore) Creates() int64 { return f.creates.Load() }

// Replaces returns the number of ReplaceIfVersionMatches attempts observed.
func (f *FaultStore) Replaces() int64 { return f.replaces.Load() }

// Read implements types.Store.
func (f *FaultStore) Read(ctx context.Context, key string) (*types.LeaseRecord, types.Version, error) {
	f.reads.Add(1)

	f.mu.Lock()
	err := f.readErr
	f.mu.Unlock()
	if err != nil {
		return nil, types.NoVersion, err
	}

	return f.inner.Read(ctx, key)
}

// CreateIfAbsent implements types.Store.
func (f *FaultStore) CreateIfAbsent(ctx context.Context, key string, record *types.LeaseRecord) (types.Version, error) {
	f.creates.Add(1)

	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return types.NoVersion, err
	}

	return f.inner.CreateIfAbsent(ctx, key, record)
}

// ReplaceIfVersionMatches implements types.Store.
func (f *FaultStore) ReplaceIfVersionMatches(ctx context.Context, key string, record *types.LeaseRecord, version types.Version) (types.Version, error) {
	f.replaces.Add(1)

	f.mu.Lock()
	err := f.replaceErr
	f.mu.Unlock()
	if err != nil {
		return types.NoVersion, err
	}

	return f.inner.ReplaceIfVersionMatches(ctx, key, record, version)
}
