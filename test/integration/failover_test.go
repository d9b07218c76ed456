//go:build integration
// +build integration

package integration_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/objelect/objelect/internal/logging"
	"github.com/objelect/objelect/natsstore"
	"github.com/objelect/objelect/test/testutil"
	objtest "github.com/objelect/objelect/testing"
)

// TestFailover_GracefulRelease tests that stopping a leader with
// ReleaseOnCancel hands leadership over without waiting out the lease.
func TestFailover_GracefulRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, nc := objtest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Second)
	defer cancel()

	store, err := natsstore.OpenBucket(ctx, js, "elections")
	require.NoError(t, err)

	cluster := testutil.NewElectorCluster(t, store, "graceful-failover")

	// Debug logging makes the release write visible during shutdown.
	debugLogger := logging.NewSlogText(os.Stdout, slog.LevelDebug)

	for range 3 {
		cluster.AddElector(debugLogger)
	}
	cluster.StartElectors(ctx)
	defer cluster.StopElectors()

	originalLeader := cluster.WaitForLeader(8 * time.Second)
	originalID := originalLeader.HolderIdentity()

	before, _, err := store.Read(ctx, "graceful-failover")
	require.NoError(t, err)

	// Kill the leader gracefully; its release write clears the holder.
	t.Logf("Stopping leader %s", originalID)
	cluster.RemoveElector(cluster.LeaderIndex())

	newLeader := cluster.WaitForLeader(8 * time.Second)
	require.NotEqual(t, originalID, newLeader.HolderIdentity(),
		"new leader should be a different elector")

	// Exactly one handoff happened.
	after, _, err := store.Read(ctx, "graceful-failover")
	require.NoError(t, err)
	require.Equal(t, newLeader.HolderIdentity(), after.HolderIdentity)
	require.Equal(t, before.LeaderTransitions+1, after.LeaderTransitions,
		"failover is exactly one leader transition")

	// The remaining electors never see two leaders at once.
	testutil.SampleAtMostOneLeader(t, cluster.Electors, time.Second, 50*time.Millisecond)
}

// TestFailover_CrashWaitsOutLease tests that when a leader disappears without
// releasing, successors honor the lease and take over only after it expires.
func TestFailover_CrashWaitsOutLease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, nc := objtest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	store, err := natsstore.OpenBucket(ctx, js, "elections")
	require.NoError(t, err)

	cluster := testutil.NewElectorCluster(t, store, "crash-failover")

	// Crashed nodes leave their lease behind.
	cluster.Config.ReleaseOnCancel = false

	for range 3 {
		cluster.AddElector()
	}
	cluster.StartElectors(ctx)
	defer cluster.StopElectors()

	originalLeader := cluster.WaitForLeader(8 * time.Second)
	originalID := originalLeader.HolderIdentity()

	before, _, err := store.Read(ctx, "crash-failover")
	require.NoError(t, err)

	// Simulate a crash: the elector stops but its lease stays in the bucket.
	t.Logf("Crashing leader %s", originalID)
	cluster.RemoveElector(cluster.LeaderIndex())
	crashedAt := time.Now()

	// The survivors honor the stale lease. With a 2s lease and renewals up
	// to the moment of the crash, no one may take over within the first
	// second.
	deadline := crashedAt.Add(time.Second)
	for time.Now().Before(deadline) {
		require.Nil(t, cluster.GetLeader(), "lease was stolen before it expired")
		time.Sleep(50 * time.Millisecond)
	}

	// After expiry, exactly one survivor takes over.
	newLeader := cluster.WaitForLeader(8 * time.Second)
	require.NotEqual(t, originalID, newLeader.HolderIdentity())
	t.Logf("Takeover %v after the crash", time.Since(crashedAt))

	record, _, err := store.Read(ctx, "crash-failover")
	require.NoError(t, err)
	require.Equal(t, newLeader.HolderIdentity(), record.HolderIdentity)
	require.Equal(t, before.LeaderTransitions+1, record.LeaderTransitions,
		"expiry takeover is exactly one leader transition")
}
