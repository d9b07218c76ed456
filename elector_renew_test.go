package objelect

import (
	"context"
	"testing"
	"time"

	"github.com/objelect/objelect/memstore"
	objtest "github.com/objelect/objelect/testing"
	"github.com/objelect/objelect/types"
	"github.com/stretchr/testify/require"
)

// TestElector_SelfDemotesWhenRenewalsFail verifies the renew deadline: a
// leader that cannot confirm renewals steps down on its own before the lease
// expires, and re-contests once the store heals.
func TestElector_SelfDemotesWhenRenewalsFail(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping slow demotion test in short mode")
	}

	ctx := t.Context()
	store := objtest.NewFaultStore(memstore.New())

	started := make(chan struct{}, 4)
	stopped := make(chan struct{}, 4)

	cfg := electorConfig("failing-renew", "node-1")
	cfg.Callbacks.OnStartedLeading = func(_ context.Context) { started <- struct{}{} }
	cfg.Callbacks.OnStoppedLeading = func() { stopped <- struct{}{} }

	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	waitSignal(t, started, 5*time.Second, "initial acquisition")

	// Cut off conditional writes. Renewals now fail until the deadline demotes.
	store.FailReplaces(types.ErrStoreUnavailable)

	waitSignal(t, stopped, 5*time.Second, "self-demotion after renew deadline")
	require.False(t, e.IsLeader())

	// Exactly one demotion per leadership, even while the fault persists.
	select {
	case <-stopped:
		t.Fatal("OnStoppedLeading fired twice for one demotion")
	case <-time.After(300 * time.Millisecond):
	}

	// Heal the store. The elector's own stale lease still has to expire
	// before it may re-acquire.
	store.FailReplaces(nil)

	waitSignal(t, started, 5*time.Second, "re-acquisition after heal")
	require.True(t, e.IsLeader())
	require.Equal(t, StateLeading, e.State())
}

// TestElector_DemotesOnLostLease verifies that a conditional-write mismatch
// during renewal demotes immediately instead of waiting out the deadline.
func TestElector_DemotesOnLostLease(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	stopped := make(chan struct{}, 4)

	cfg := electorConfig("contested-renew", "node-1")
	cfg.Callbacks.OnStoppedLeading = func() { stopped <- struct{}{} }

	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	require.NoError(t, <-e.WaitState(StateLeading, 5*time.Second))

	// Rewrite the lease out from under the leader, retrying around its
	// concurrent renewals.
	require.Eventually(t, func() bool {
		record, version, err := store.Read(ctx, "contested-renew")
		if err != nil || record == nil {
			return false
		}

		intruder := record.Clone()
		intruder.HolderIdentity = "intruder"
		intruder.LeaseDuration = 10 * time.Second
		intruder.AcquireTime = time.Now()
		intruder.RenewTime = time.Now()
		intruder.LeaderTransitions++

		_, err = store.ReplaceIfVersionMatches(ctx, "contested-renew", intruder, version)

		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "could not take over the lease")

	waitSignal(t, stopped, 5*time.Second, "demotion after lease takeover")
	require.False(t, e.IsLeader())

	// The demoted elector keeps contending and observes the new holder.
	require.Eventually(t, func() bool {
		return e.Leader() == "intruder"
	}, 5*time.Second, 20*time.Millisecond, "new holder never observed")
	require.Equal(t, StateAcquiring, e.State())
}

// TestElector_RenewalsExtendLeadership verifies that confirmed renewals keep
// one holder leading well past the initial lease duration.
func TestElector_RenewalsExtendLeadership(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping slow renewal test in short mode")
	}

	ctx := t.Context()
	store := memstore.New()

	stopped := make(chan struct{}, 1)

	cfg := electorConfig("long-haul", "node-1")
	cfg.Callbacks.OnStoppedLeading = func() { stopped <- struct{}{} }

	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	require.NoError(t, <-e.WaitState(StateLeading, 5*time.Second))

	first, firstVersion, err := store.Read(ctx, "long-haul")
	require.NoError(t, err)

	// Hold leadership across two full lease durations.
	time.Sleep(2*cfg.LeaseDuration + cfg.RetryPeriod)

	require.True(t, e.IsLeader())
	select {
	case <-stopped:
		t.Fatal("leadership was lost despite a healthy store")
	default:
	}

	second, secondVersion, err := store.Read(ctx, "long-haul")
	require.NoError(t, err)

	// Renewals advanced the record without restarting the lease.
	require.NotEqual(t, firstVersion, secondVersion)
	require.True(t, second.RenewTime.After(first.RenewTime))
	require.True(t, second.AcquireTime.Equal(first.AcquireTime), "renewals preserve the acquire time")
	require.Equal(t, first.LeaderTransitions, second.LeaderTransitions)
	require.Equal(t, "node-1", second.HolderIdentity)
}
