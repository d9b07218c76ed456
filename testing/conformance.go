package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/objelect/objelect/types"
)

// StoreFactory builds a fresh, empty Store for one conformance subtest.
// Implementations may use t for cleanup registration.
type StoreFactory func(t *testing.T) types.Store

// RunStoreConformance runs the behavioral suite every types.Store adapter
// must pass. It verifies the three operations' contracts, the sentinel
// error mapping, version opacity, payload fidelity, and — most importantly —
// the single-winner guarantees under concurrent conditional writes.
//
// Each subtest receives its own store from factory, so adapters with
// expensive setup should make the factory cheap (e.g. one embedded server
// per test function, one bucket per factory call).
//
// Example:
//
//	func TestMemStoreConformance(t *testing.T) {
//	    objtest.RunStoreConformance(t, func(t *testing.T) types.Store {
//	        return memstore.New()
//	    })
//	}
func RunStoreConformance(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("read absent key", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		rec, ver, err := store.Read(ctx, "election/absent")
		require.NoError(t, err)
		require.Nil(t, rec)
		require.Equal(t, types.NoVersion, ver)
	})

	t.Run("create then read", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		want := conformanceRecord("node-a", 0)
		ver, err := store.CreateIfAbsent(ctx, "election/leader", want)
		require.NoError(t, err)
		require.NotEqual(t, types.NoVersion, ver)

		got, readVer, err := store.Read(ctx, "election/leader")
		require.NoError(t, err)
		require.Equal(t, ver, readVer)
		requireSameRecord(t, want, got)
	})

	t.Run("create on occupied key fails", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		_, err := store.CreateIfAbsent(ctx, "election/leader", conformanceRecord("node-a", 0))
		require.NoError(t, err)

		_, err = store.CreateIfAbsent(ctx, "election/leader", conformanceRecord("node-b", 0))
		require.Error(t, err)
		require.ErrorIs(t, err, types.ErrRecordExists)
	})

	t.Run("replace with matching version", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		v1, err := store.CreateIfAbsent(ctx, "election/leader", conformanceRecord("node-a", 0))
		require.NoError(t, err)

		next := conformanceRecord("node-b", 1)
		v2, err := store.ReplaceIfVersionMatches(ctx, "election/leader", next, v1)
		require.NoError(t, err)
		require.NotEqual(t, types.NoVersion, v2)
		require.NotEqual(t, v1, v2, "successful replacement must advance the version")

		got, readVer, err := store.Read(ctx, "election/leader")
		require.NoError(t, err)
		require.Equal(t, v2, readVer)
		requireSameRecord(t, next, got)
	})

	t.Run("replace with stale version fails", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		v1, err := store.CreateIfAbsent(ctx, "election/leader", conformanceRecord("node-a", 0))
		require.NoError(t, err)

		_, err = store.ReplaceIfVersionMatches(ctx, "election/leader", conformanceRecord("node-a", 0), v1)
		require.NoError(t, err)

		// v1 is now stale.
		_, err = store.ReplaceIfVersionMatches(ctx, "election/leader", conformanceRecord("node-b", 1), v1)
		require.Error(t, err)
		require.ErrorIs(t, err, types.ErrVersionMismatch)

		// The stored record is untouched by the failed write.
		got, _, err := store.Read(ctx, "election/leader")
		require.NoError(t, err)
		require.Equal(t, "node-a", got.HolderIdentity)
	})

	t.Run("replace on absent key fails", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		_, err := store.ReplaceIfVersionMatches(ctx, "election/ghost", conformanceRecord("node-a", 0), types.Version("1"))
		require.Error(t, err)
		require.ErrorIs(t, err, types.ErrVersionMismatch)
	})

	t.Run("keys are isolated", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		_, err := store.CreateIfAbsent(ctx, "election/alpha", conformanceRecord("node-a", 0))
		require.NoError(t, err)

		_, err = store.CreateIfAbsent(ctx, "election/beta", conformanceRecord("node-b", 0))
		require.NoError(t, err)

		gotA, _, err := store.Read(ctx, "election/alpha")
		require.NoError(t, err)
		require.Equal(t, "node-a", gotA.HolderIdentity)

		gotB, _, err := store.Read(ctx, "election/beta")
		require.NoError(t, err)
		require.Equal(t, "node-b", gotB.HolderIdentity)
	})

	t.Run("record fields survive storage", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		acquire := time.Date(2025, 8, 25, 9, 30, 0, 0, time.UTC)
		want := &types.LeaseRecord{
			HolderIdentity:    "host-42-d00d",
			LeaseDuration:     45 * time.Second,
			AcquireTime:       acquire,
			RenewTime:         acquire.Add(90 * time.Second),
			LeaderTransitions: 0, // zero value must round-trip too
		}

		_, err := store.CreateIfAbsent(ctx, "election/fidelity", want)
		require.NoError(t, err)

		got, _, err := store.Read(ctx, "election/fidelity")
		require.NoError(t, err)
		requireSameRecord(t, want, got)
		require.Zero(t, got.LeaderTransitions)
	})

	t.Run("released record stays readable", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		v1, err := store.CreateIfAbsent(ctx, "election/leader", conformanceRecord("node-a", 0))
		require.NoError(t, err)

		released := conformanceRecord("", 0)
		_, err = store.ReplaceIfVersionMatches(ctx, "election/leader", released, v1)
		require.NoError(t, err)

		got, ver, err := store.Read(ctx, "election/leader")
		require.NoError(t, err)
		require.NotEqual(t, types.NoVersion, ver)
		require.False(t, got.HasHolder())
	})

	t.Run("concurrent create admits one winner", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		const contenders = 8

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			losses int
		)

		start := make(chan struct{})
		for i := range contenders {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				<-start

				rec := conformanceRecord(holderName(id), 0)
				_, err := store.CreateIfAbsent(ctx, "election/contested", rec)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case types.IsConflict(err):
					losses++
				default:
					t.Errorf("unexpected create error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, wins, "exactly one contender must win the create race")
		require.Equal(t, contenders-1, losses)
	})

	t.Run("concurrent replace admits one winner", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		v1, err := store.CreateIfAbsent(ctx, "election/contested", conformanceRecord("incumbent", 0))
		require.NoError(t, err)

		const contenders = 8

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			losses int
		)

		start := make(chan struct{})
		for i := range contenders {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				<-start

				rec := conformanceRecord(holderName(id), 1)
				_, err := store.ReplaceIfVersionMatches(ctx, "election/contested", rec, v1)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case types.IsConflict(err):
					losses++
				default:
					t.Errorf("unexpected replace error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, wins, "exactly one contender must win the replace race")
		require.Equal(t, contenders-1, losses)
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		store := factory(t)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := store.Read(cancelled, "election/leader")
		require.Error(t, err)

		_, err = store.CreateIfAbsent(cancelled, "election/leader", conformanceRecord("node-a", 0))
		require.Error(t, err)

		_, err = store.ReplaceIfVersionMatches(cancelled, "election/leader", conformanceRecord("node-a", 0), types.Version("1"))
		require.Error(t, err)
	})
}

// conformanceRecord builds a lease record with deterministic timestamps.
func conformanceRecord(holder string, transitions uint32) *types.LeaseRecord {
	now := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

	return &types.LeaseRecord{
		HolderIdentity:    holder,
		LeaseDuration:     15 * time.Second,
		AcquireTime:       now,
		RenewTime:         now,
		LeaderTransitions: transitions,
	}
}

// holderName names a contending goroutine.
func holderName(id int) string {
	return "contender-" + string(rune('a'+id))
}

// requireSameRecord compares records field by field; timestamps compare by
// instant, not by location, since backends normalize to UTC.
func requireSameRecord(t *testing.T, want, got *types.LeaseRecord) {
	t.Helper()

	require.NotNil(t, got)
	require.Equal(t, want.HolderIdentity, got.HolderIdentity)
	require.Equal(t, want.LeaseDuration, got.LeaseDuration)
	require.True(t, want.AcquireTime.Equal(got.AcquireTime),
		"acquire time mismatch: want %v got %v", want.AcquireTime, got.AcquireTime)
	require.True(t, want.RenewTime.Equal(got.RenewTime),
		"renew time mismatch: want %v got %v", want.RenewTime, got.RenewTime)
	require.Equal(t, want.LeaderTransitions, got.LeaderTransitions)
}
