package objelect

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/objelect/objelect/memstore"
	"github.com/objelect/objelect/types"
	"github.com/stretchr/testify/require"
)

// electorConfig returns a fast test configuration for key with noop callbacks
// attached. Tests override individual callbacks as needed.
func electorConfig(key, identity string) Config {
	cfg := TestConfig()
	cfg.ElectionKey = key
	cfg.HolderIdentity = identity
	cfg.Callbacks = testCallbacks()

	return cfg
}

// waitSignal fails the test if ch does not receive within timeout.
func waitSignal(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// stopElector shuts down an elector at test end, ignoring the result so tests
// that already stopped it explicitly stay valid.
func stopElector(e *Elector) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Stop(stopCtx)
}

func TestNew_NilSafety(t *testing.T) {
	store := memstore.New()

	t.Run("nil config", func(t *testing.T) {
		e, err := New(nil, store)

		require.ErrorIs(t, err, ErrInvalidConfig)
		require.Nil(t, e)
	})

	t.Run("nil store", func(t *testing.T) {
		cfg := electorConfig("nil-safety", "node-1")
		e, err := New(&cfg, nil)

		require.ErrorIs(t, err, ErrStoreRequired)
		require.Nil(t, e)
	})

	t.Run("without optional dependencies", func(t *testing.T) {
		cfg := electorConfig("nil-safety", "node-1")
		e, err := New(&cfg, store)

		require.NoError(t, err)
		require.NotNil(t, e)

		// Verify optional fields get safe defaults (not nil)
		require.NotNil(t, e.hooks)
		require.NotNil(t, e.metrics)
		require.NotNil(t, e.logger)
		require.NotNil(t, e.rng) // identity-derived jitter stream

		// Verify internal methods don't panic even without custom implementations
		require.NotPanics(t, func() {
			e.transitionState(StateIdle, StateAcquiring)
		})
	})

	t.Run("accepts optional hooks", func(t *testing.T) {
		hooks := &Hooks{}
		cfg := electorConfig("nil-safety", "node-1")
		e, err := New(&cfg, store, WithHooks(hooks))

		require.NoError(t, err)
		require.NotNil(t, e)
	})
}

func TestNew_RequiredParameters(t *testing.T) {
	store := memstore.New()

	t.Run("missing election key", func(t *testing.T) {
		cfg := electorConfig("", "node-1")
		_, err := New(&cfg, store)

		require.ErrorIs(t, err, ErrElectionKeyRequired)
	})

	t.Run("missing callbacks", func(t *testing.T) {
		cfg := electorConfig("required", "node-1")
		cfg.Callbacks = types.Callbacks{}
		_, err := New(&cfg, store)

		require.ErrorIs(t, err, types.ErrOnStartedLeadingRequired)
	})

	t.Run("invalid timing rejected", func(t *testing.T) {
		cfg := electorConfig("required", "node-1")
		cfg.RenewDeadline = cfg.LeaseDuration // must be shorter
		_, err := New(&cfg, store)

		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := Config{
		ElectionKey: "defaults",
		Callbacks:   testCallbacks(),
	}

	e, err := New(&cfg, memstore.New())
	require.NoError(t, err)

	// Missing fields were filled in before validation.
	require.NotEmpty(t, cfg.HolderIdentity)
	require.Equal(t, 15*time.Second, cfg.LeaseDuration)
	require.Equal(t, 10*time.Second, cfg.RenewDeadline)
	require.Equal(t, 2*time.Second, cfg.RetryPeriod)

	require.Equal(t, cfg.HolderIdentity, e.HolderIdentity())
	require.Equal(t, StateIdle, e.State())
	require.False(t, e.IsLeader())
	require.Empty(t, e.Leader())
}

func TestElector_StartStop(t *testing.T) {
	ctx := t.Context()

	cfg := electorConfig("start-stop", "node-1")
	e, err := New(&cfg, memstore.New())
	require.NoError(t, err)

	// Stop before Start is an error.
	require.ErrorIs(t, e.Stop(ctx), ErrNotStarted)

	require.NoError(t, e.Start(ctx))
	require.ErrorIs(t, e.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, <-e.WaitState(StateLeading, 5*time.Second))

	require.NoError(t, e.Stop(ctx))
	require.Equal(t, StateShutdown, e.State())
	require.False(t, e.IsLeader())

	// Subsequent stops report the elector as no longer running.
	require.ErrorIs(t, e.Stop(ctx), ErrNotStarted)
}

func TestElector_AcquiresIdleKey(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	started := make(chan struct{})
	cfg := electorConfig("idle-key", "node-1")
	cfg.Callbacks.OnStartedLeading = func(_ context.Context) { close(started) }

	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	waitSignal(t, started, 5*time.Second, "OnStartedLeading")

	require.True(t, e.IsLeader())
	require.Equal(t, StateLeading, e.State())
	require.Equal(t, "node-1", e.Leader())

	// The store-confirmed record is the source of truth.
	record, version, err := store.Read(ctx, "idle-key")
	require.NoError(t, err)
	require.NotEqual(t, types.NoVersion, version)
	require.Equal(t, "node-1", record.HolderIdentity)
	require.Equal(t, cfg.LeaseDuration, record.LeaseDuration)
	require.Equal(t, uint32(0), record.LeaderTransitions, "a fresh lease starts with zero transitions")
	require.False(t, record.AcquireTime.IsZero())
	require.False(t, record.RenewTime.Before(record.AcquireTime))
}

func TestElector_SingleWinner(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	const contenders = 4
	electors := make([]*Elector, contenders)
	for i := range contenders {
		cfg := electorConfig("contested-key", fmt.Sprintf("node-%d", i))
		e, err := New(&cfg, store)
		require.NoError(t, err)

		electors[i] = e
		require.NoError(t, e.Start(ctx))
		defer stopElector(e)
	}

	countLeaders := func() int {
		n := 0
		for _, e := range electors {
			if e.IsLeader() {
				n++
			}
		}

		return n
	}

	require.Eventually(t, func() bool {
		return countLeaders() == 1
	}, 5*time.Second, 20*time.Millisecond, "no leader elected")

	// Leadership stays with exactly one contender while the holder renews.
	for range 10 {
		require.Equal(t, 1, countLeaders())
		time.Sleep(50 * time.Millisecond)
	}

	// Every contender agrees on who leads.
	record, _, err := store.Read(ctx, "contested-key")
	require.NoError(t, err)
	for _, e := range electors {
		require.Equal(t, record.HolderIdentity, e.Leader())
	}
}

func TestElector_TakeoverAfterExpiredLease(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	// Seed a lease whose holder stopped renewing long ago.
	stale := &types.LeaseRecord{
		HolderIdentity: "node-a",
		LeaseDuration:  200 * time.Millisecond,
		AcquireTime:    time.Now().Add(-time.Minute),
		RenewTime:      time.Now().Add(-time.Minute),
	}
	_, err := store.CreateIfAbsent(ctx, "expired-key", stale)
	require.NoError(t, err)

	var mu sync.Mutex
	var observed []string

	cfg := electorConfig("expired-key", "node-b")
	cfg.Callbacks.OnNewLeader = func(identity string) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, identity)
	}

	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	require.NoError(t, <-e.WaitState(StateLeading, 5*time.Second))

	record, _, err := store.Read(ctx, "expired-key")
	require.NoError(t, err)
	require.Equal(t, "node-b", record.HolderIdentity)
	require.Equal(t, uint32(1), record.LeaderTransitions, "taking over another holder's lease bumps the counter")

	// The stale holder was observed before the takeover replaced it.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"node-a", "node-b"}, observed)
}

func TestElector_WaitsForLiveLease(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	// Seed a live lease held by another node. It expires without renewal
	// one second in.
	live := &types.LeaseRecord{
		HolderIdentity: "node-a",
		LeaseDuration:  time.Second,
		AcquireTime:    time.Now(),
		RenewTime:      time.Now(),
	}
	_, err := store.CreateIfAbsent(ctx, "live-key", live)
	require.NoError(t, err)

	cfg := electorConfig("live-key", "node-b")
	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	// The lease is honored while live.
	time.Sleep(300 * time.Millisecond)
	require.False(t, e.IsLeader())
	require.Equal(t, StateAcquiring, e.State())
	require.Equal(t, "node-a", e.Leader(), "a non-leading elector still observes the holder")

	// Once it expires without renewal the elector takes over.
	require.NoError(t, <-e.WaitState(StateLeading, 5*time.Second))
	require.True(t, e.IsLeader())
	require.Equal(t, "node-b", e.Leader())
}

func TestElector_ReacquiresOwnExpiredLease(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	// A previous incarnation of this node left an expired lease behind.
	stale := &types.LeaseRecord{
		HolderIdentity:    "node-b",
		LeaseDuration:     100 * time.Millisecond,
		AcquireTime:       time.Now().Add(-time.Minute),
		RenewTime:         time.Now().Add(-time.Minute),
		LeaderTransitions: 3,
	}
	_, err := store.CreateIfAbsent(ctx, "own-key", stale)
	require.NoError(t, err)

	cfg := electorConfig("own-key", "node-b")
	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	require.NoError(t, <-e.WaitState(StateLeading, 5*time.Second))

	record, _, err := store.Read(ctx, "own-key")
	require.NoError(t, err)
	require.Equal(t, "node-b", record.HolderIdentity)
	require.Equal(t, uint32(3), record.LeaderTransitions, "re-acquiring an own lease is not a transition")
}

func TestElector_ObservesStableLeaderOnce(t *testing.T) {
	ctx := t.Context()
	store := memstore.New()

	// A healthy holder that outlives the whole test.
	live := &types.LeaseRecord{
		HolderIdentity: "node-a",
		LeaseDuration:  time.Minute,
		AcquireTime:    time.Now(),
		RenewTime:      time.Now(),
	}
	_, err := store.CreateIfAbsent(ctx, "stable-key", live)
	require.NoError(t, err)

	var mu sync.Mutex
	var observed []string

	cfg := electorConfig("stable-key", "node-b")
	cfg.Callbacks.OnNewLeader = func(identity string) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, identity)
	}

	e, err := New(&cfg, store)
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	defer stopElector(e)

	// Many poll cycles over an unchanged holder.
	time.Sleep(600 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"node-a"}, observed, "an unchanged holder is reported exactly once")
}
