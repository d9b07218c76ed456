package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/objelect/objelect"
	"github.com/objelect/objelect/types"
	"github.com/stretchr/testify/require"
)

// FastElectionConfig provides aggressive timings for integration tests: a
// crashed leader is replaced in roughly two seconds, a released lease in a
// few retry periods.
func FastElectionConfig(key string) objelect.Config {
	cfg := objelect.TestConfig()
	cfg.ElectionKey = key
	cfg.ReleaseOnCancel = true

	return cfg
}

// StateTracker records the states one elector moved through.
//
// State change hooks run on background goroutines, so all access is
// mutex-guarded.
type StateTracker struct {
	ElectorIndex int
	T            *testing.T

	mu     sync.Mutex
	states []objelect.State
}

// CreateStateTracker creates a new state tracker.
func CreateStateTracker(t *testing.T, electorIndex int) *StateTracker {
	return &StateTracker{
		ElectorIndex: electorIndex,
		T:            t,
		states:       make([]objelect.State, 0),
	}
}

// Hook returns a hook function for tracking state changes.
func (st *StateTracker) Hook() func(context.Context, objelect.State, objelect.State) error {
	return func(_ context.Context, from, to objelect.State) error {
		st.mu.Lock()
		st.states = append(st.states, to)
		st.mu.Unlock()
		st.T.Logf("Elector %d: %s -> %s", st.ElectorIndex, from.String(), to.String())

		return nil
	}
}

// HasState checks if the elector went through a specific state.
func (st *StateTracker) HasState(state objelect.State) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, s := range st.states {
		if s == state {
			return true
		}
	}

	return false
}

// ElectorCluster manages a set of electors contending for one election key
// through a shared store.
type ElectorCluster struct {
	Electors      []*objelect.Elector
	StateTrackers []*StateTracker

	// Config is the template snapshot taken by AddElector. Tests may adjust
	// it (e.g. ReleaseOnCancel) between additions.
	Config objelect.Config

	Store types.Store
	T     *testing.T
}

// NewElectorCluster creates a cluster whose electors contend for key through
// store using FastElectionConfig timings.
func NewElectorCluster(t *testing.T, store types.Store, key string) *ElectorCluster {
	return &ElectorCluster{
		Electors:      make([]*objelect.Elector, 0),
		StateTrackers: make([]*StateTracker, 0),
		Config:        FastElectionConfig(key),
		Store:         store,
		T:             t,
	}
}

// AddElector adds an elector to the cluster with state tracking.
//
// Optional logger can be passed to enable debug logging for troubleshooting:
//
//	debugLogger := logger.NewTest(t)
//	cluster.AddElector(debugLogger)
//
// Without a logger, the elector uses the default nop logger (no output).
//
// Parameters:
//   - opts: Optional logger for debug output
//
// Returns:
//   - *objelect.Elector: The created elector
func (ec *ElectorCluster) AddElector(opts ...types.Logger) *objelect.Elector {
	idx := len(ec.Electors)
	tracker := CreateStateTracker(ec.T, idx)
	ec.StateTrackers = append(ec.StateTrackers, tracker)

	cfg := ec.Config
	cfg.HolderIdentity = fmt.Sprintf("node-%d", idx)
	cfg.Callbacks = objelect.Callbacks{
		OnStartedLeading: func(_ context.Context) {
			ec.T.Logf("Elector %d started leading", idx)
		},
		OnStoppedLeading: func() {
			ec.T.Logf("Elector %d stopped leading", idx)
		},
	}

	hooks := &objelect.Hooks{
		OnStateChanged: tracker.Hook(),
	}

	electorOpts := []objelect.Option{objelect.WithHooks(hooks)}
	if len(opts) > 0 && opts[0] != nil {
		electorOpts = append(electorOpts, objelect.WithLogger(opts[0]))
	}

	e, err := objelect.New(&cfg, ec.Store, electorOpts...)
	require.NoError(ec.T, err, "failed to create elector %d", idx)

	ec.Electors = append(ec.Electors, e)

	return e
}

// StartElectors starts all electors in the cluster.
func (ec *ElectorCluster) StartElectors(ctx context.Context) {
	for i, e := range ec.Electors {
		err := e.Start(ctx)
		require.NoError(ec.T, err, "elector %d failed to start", i)
	}
}

// StopElectors stops all electors gracefully.
// Skips electors that are already in Shutdown state.
func (ec *ElectorCluster) StopElectors() {
	for i, e := range ec.Electors {
		if e.State() == objelect.StateShutdown {
			ec.T.Logf("Elector %d already shutdown, skipping", i)
			continue
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.Stop(stopCtx); err != nil {
			ec.T.Logf("Elector %d stop error (non-fatal): %v", i, err)
		}
		cancel()
	}
}

// RemoveElector stops an elector (simulates a node leaving the cluster).
// It calls Stop() but doesn't remove the elector from the slice to avoid
// index issues; use GetActiveElectors to skip stopped electors.
func (ec *ElectorCluster) RemoveElector(index int) {
	require.Less(ec.T, index, len(ec.Electors), "invalid elector index")

	e := ec.Electors[index]
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := e.Stop(stopCtx)
	require.NoError(ec.T, err, "failed to stop elector %d", index)

	ec.T.Logf("Removed elector %d (%s)", index, e.HolderIdentity())
}

// GetActiveElectors returns only the electors that are not in Shutdown state.
func (ec *ElectorCluster) GetActiveElectors() []*objelect.Elector {
	active := make([]*objelect.Elector, 0, len(ec.Electors))
	for _, e := range ec.Electors {
		if e.State() != objelect.StateShutdown {
			active = append(active, e)
		}
	}

	return active
}

// GetLeader returns the current leader or nil.
func (ec *ElectorCluster) GetLeader() *objelect.Elector {
	for _, e := range ec.Electors {
		if e.IsLeader() {
			return e
		}
	}

	return nil
}

// LeaderIndex returns the index of the current leader, or -1.
func (ec *ElectorCluster) LeaderIndex() int {
	for i, e := range ec.Electors {
		if e.IsLeader() {
			return i
		}
	}

	return -1
}

// WaitForLeader waits until exactly one active elector holds leadership and
// returns it.
func (ec *ElectorCluster) WaitForLeader(timeout time.Duration) *objelect.Elector {
	var leader *objelect.Elector

	require.Eventually(ec.T, func() bool {
		leaderCount := 0
		for _, e := range ec.GetActiveElectors() {
			if e.IsLeader() {
				leaderCount++
				leader = e
			}
		}

		return leaderCount == 1
	}, timeout, 50*time.Millisecond, "no single leader emerged")

	ec.T.Logf("Leader: %s", leader.HolderIdentity())

	return leader
}

// VerifyExactlyOneLeader verifies that exactly one active elector is the
// leader right now and returns it.
func (ec *ElectorCluster) VerifyExactlyOneLeader() *objelect.Elector {
	leaderCount := 0
	var leader *objelect.Elector

	for i, e := range ec.Electors {
		if e.State() == objelect.StateShutdown {
			continue
		}
		if e.IsLeader() {
			leaderCount++
			leader = e
			ec.T.Logf("Elector %d (%s) is the leader", i, e.HolderIdentity())
		}
	}
	require.Equal(ec.T, 1, leaderCount, "expected exactly one leader")

	return leader
}

// VerifyStateTransition verifies that at least one elector went through the
// specified state.
func (ec *ElectorCluster) VerifyStateTransition(state objelect.State) {
	found := false
	for i, tracker := range ec.StateTrackers {
		if tracker.HasState(state) {
			ec.T.Logf("Elector %d went through %s state", i, state.String())
			found = true
		}
	}
	require.True(ec.T, found, "no elector entered %s state", state.String())
}
