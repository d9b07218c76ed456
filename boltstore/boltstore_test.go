package boltstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	objtest "github.com/objelect/objelect/testing"
	"github.com/objelect/objelect/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "elections.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestConformance(t *testing.T) {
	objtest.RunStoreConformance(t, func(t *testing.T) types.Store {
		return openTestStore(t)
	})
}

func TestOpenCreatesBucket(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	require.Equal(t, DefaultBucket, string(store.bucket))

	_, err := store.CreateIfAbsent(t.Context(), "leader", &types.LeaseRecord{HolderIdentity: "a"})
	require.NoError(t, err)
}

func TestNewWrapsExistingDB(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shared.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	defer db.Close()

	store, err := New(db, "elections")
	require.NoError(t, err)

	// Close on a wrapping store must not close the caller's DB.
	require.NoError(t, store.Close())
	_, err = store.CreateIfAbsent(t.Context(), "leader", &types.LeaseRecord{HolderIdentity: "a"})
	require.NoError(t, err)
}

func TestLeaseSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "elections.db")

	store, err := Open(path, "elections")
	require.NoError(t, err)

	want := &types.LeaseRecord{
		HolderIdentity:    "node-a",
		LeaseDuration:     15 * time.Second,
		AcquireTime:       time.Date(2025, 8, 25, 8, 0, 0, 0, time.UTC),
		RenewTime:         time.Date(2025, 8, 25, 8, 1, 0, 0, time.UTC),
		LeaderTransitions: 4,
	}
	ver, err := store.CreateIfAbsent(t.Context(), "leader", want)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, "elections")
	require.NoError(t, err)
	defer reopened.Close()

	got, gotVer, err := reopened.Read(t.Context(), "leader")
	require.NoError(t, err)
	require.Equal(t, ver, gotVer)
	require.Equal(t, want.HolderIdentity, got.HolderIdentity)
	require.Equal(t, want.LeaderTransitions, got.LeaderTransitions)
	require.True(t, want.RenewTime.Equal(got.RenewTime))
}

func TestCorruptPayloadSurfacesAsCorrupt(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	// Plant garbage straight into the bucket.
	err := store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(store.bucket).Put([]byte("leader"), []byte("not json"))
	})
	require.NoError(t, err)

	_, _, err = store.Read(t.Context(), "leader")
	require.Error(t, err)
	require.True(t, types.IsCorrupt(err))

	// A corrupt record still refuses replacement (version unknowable).
	_, err = store.ReplaceIfVersionMatches(t.Context(), "leader", &types.LeaseRecord{HolderIdentity: "b"}, types.Version("1"))
	require.Error(t, err)
}

func TestVersionAdvancesPerReplace(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()

	rec := &types.LeaseRecord{HolderIdentity: "node-a"}
	ver, err := store.CreateIfAbsent(ctx, "leader", rec)
	require.NoError(t, err)
	require.Equal(t, types.Version("1"), ver)

	ver2, err := store.ReplaceIfVersionMatches(ctx, "leader", rec, ver)
	require.NoError(t, err)
	require.Equal(t, types.Version("2"), ver2)

	// Stale token is rejected.
	_, err = store.ReplaceIfVersionMatches(ctx, "leader", rec, ver)
	require.ErrorIs(t, err, types.ErrVersionMismatch)
}
