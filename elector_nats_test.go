package objelect_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/objelect/objelect"
	"github.com/objelect/objelect/natsstore"
	objtest "github.com/objelect/objelect/testing"
	"github.com/stretchr/testify/require"
)

// TestElector_FailoverOverNATS drives two electors against a real JetStream
// KV bucket: the first leads, releases its lease on shutdown, and the second
// takes over without waiting out the lease duration.
func TestElector_FailoverOverNATS(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Setup embedded NATS with a KV bucket backing the election
	_, nc := objtest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	store, err := natsstore.OpenBucket(ctx, js, "elections")
	require.NoError(t, err)

	newElector := func(identity string) *objelect.Elector {
		cfg := objelect.TestConfig()
		cfg.ElectionKey = "orders-coordinator"
		cfg.HolderIdentity = identity
		cfg.ReleaseOnCancel = true
		cfg.Callbacks = objelect.Callbacks{
			OnStartedLeading: func(_ context.Context) { t.Logf("%s started leading", identity) },
			OnStoppedLeading: func() { t.Logf("%s stopped leading", identity) },
		}

		e, err := objelect.New(&cfg, store)
		require.NoError(t, err)

		return e
	}

	first := newElector("node-1")
	second := newElector("node-2")

	require.NoError(t, first.Start(ctx))
	require.NoError(t, <-first.WaitState(objelect.StateLeading, 10*time.Second))
	t.Logf("node-1 leads, state: %v", first.State())

	require.NoError(t, second.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = second.Stop(stopCtx)
	}()

	// The second elector honors the live lease and observes its holder.
	time.Sleep(300 * time.Millisecond)
	require.False(t, second.IsLeader())
	require.Equal(t, "node-1", second.Leader())

	// Graceful shutdown releases the lease, so failover does not wait for
	// the lease to expire.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, first.Stop(stopCtx))

	require.NoError(t, <-second.WaitState(objelect.StateLeading, 10*time.Second))
	require.True(t, second.IsLeader())
	t.Logf("node-2 took over, state: %v", second.State())

	record, _, err := store.Read(ctx, "orders-coordinator")
	require.NoError(t, err)
	require.Equal(t, "node-2", record.HolderIdentity)
	require.Equal(t, uint32(1), record.LeaderTransitions, "failover is one leader transition")
}
