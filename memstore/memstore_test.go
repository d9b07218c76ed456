package memstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	objtest "github.com/objelect/objelect/testing"
	"github.com/objelect/objelect/types"
)

func TestConformance(t *testing.T) {
	objtest.RunStoreConformance(t, func(_ *testing.T) types.Store {
		return New()
	})
}

func TestReadReturnsCopy(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := t.Context()

	orig := &types.LeaseRecord{HolderIdentity: "node-a", LeaseDuration: 15 * time.Second}
	_, err := store.CreateIfAbsent(ctx, "leader", orig)
	require.NoError(t, err)

	// Mutating what the caller passed in must not affect the stored record.
	orig.HolderIdentity = "mutated"
	got1, _, err := store.Read(ctx, "leader")
	require.NoError(t, err)
	require.Equal(t, "node-a", got1.HolderIdentity)

	// Mutating what a reader got back must not affect the stored record.
	got1.HolderIdentity = "also-mutated"
	got2, _, err := store.Read(ctx, "leader")
	require.NoError(t, err)
	require.Equal(t, "node-a", got2.HolderIdentity)
}

func TestVersionsAreMonotonic(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := t.Context()

	rec := &types.LeaseRecord{HolderIdentity: "node-a"}
	prev, err := store.CreateIfAbsent(ctx, "leader", rec)
	require.NoError(t, err)

	for range 5 {
		next, err := store.ReplaceIfVersionMatches(ctx, "leader", rec, prev)
		require.NoError(t, err)
		require.NotEqual(t, prev, next)
		prev = next
	}
}

func TestDeleteAndLen(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := t.Context()

	_, err := store.CreateIfAbsent(ctx, "a", &types.LeaseRecord{HolderIdentity: "x"})
	require.NoError(t, err)
	_, err = store.CreateIfAbsent(ctx, "b", &types.LeaseRecord{HolderIdentity: "y"})
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	store.Delete("a")
	require.Equal(t, 1, store.Len())

	rec, ver, err := store.Read(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Equal(t, types.NoVersion, ver)

	// Key is creatable again after deletion.
	_, err = store.CreateIfAbsent(ctx, "a", &types.LeaseRecord{HolderIdentity: "z"})
	require.NoError(t, err)
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := t.Context()

	ver, err := store.CreateIfAbsent(ctx, "leader", &types.LeaseRecord{HolderIdentity: "node-a"})
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Hammer reads while a writer advances the record.
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				rec, _, err := store.Read(ctx, "leader")
				if err != nil || rec == nil || rec.HolderIdentity == "" {
					t.Errorf("read saw inconsistent state: rec=%v err=%v", rec, err)
					return
				}
			}
		}()
	}

	for i := range 100 {
		next, err := store.ReplaceIfVersionMatches(ctx, "leader", &types.LeaseRecord{
			HolderIdentity:    "node-a",
			LeaderTransitions: uint32(i),
		}, ver)
		require.NoError(t, err)
		ver = next
	}

	close(done)
	wg.Wait()
}
