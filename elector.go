package objelect

import (
	"context"
	"errors"
	rand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objelect/objelect/internal/backoff"
	"github.com/objelect/objelect/internal/hooks"
	"github.com/objelect/objelect/internal/logger"
	"github.com/objelect/objelect/internal/metrics"
	"github.com/objelect/objelect/types"
)

// backoffMultiplier controls how fast the acquire-loop delay grows while the
// store is unreachable.
const backoffMultiplier = 2.0

// Elector campaigns for leadership of a single election key using nothing
// but a store's conditional writes.
//
// Elector is the main entry point of the objelect library. It handles:
//   - Lease acquisition through create-if-absent / conditional-replace races
//   - Periodic lease renewal while leading
//   - Self-demotion when no renewal is confirmed within RenewDeadline
//   - Leader observation (OnNewLeader) independent of the elector's own role
//   - Optional lease release on shutdown for fast failover
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Callbacks run synchronously on the election goroutine, so their
//     ordering is deterministic
//
// Lifecycle:
//   - Create with New()
//   - Call Start() to begin campaigning
//   - Call Stop() for graceful shutdown
//
// Testing:
// Consumers can define minimal interfaces for mocking:
//
//	type LeaderElector interface {
//	    Start(ctx context.Context) error
//	    IsLeader() bool
//	}
type Elector struct {
	cfg   Config
	store types.Store

	// Optional dependencies
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger

	// Jitter source for the acquire loop; used only by the run goroutine.
	rng *rand.Rand

	// State management
	state          atomic.Int32 // State
	leading        atomic.Bool
	observedLeader atomic.Value // string

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopping bool
}

// New creates an Elector contending for cfg.ElectionKey through store.
//
// Defaults are applied to cfg in place (SetDefaults) before validation, so a
// zero HolderIdentity is auto-generated. The store is shared coordination
// state: every elector pointed at the same store and key contends for the
// same leadership role.
//
// Returns a concrete *Elector struct following the "accept interfaces,
// return structs" principle. Consumers can define their own interfaces for
// testing if needed.
//
// Parameters:
//   - cfg: Runtime configuration with parsed durations and callbacks attached
//   - store: Lease record store shared by all contenders
//   - opts: Optional configuration (hooks, metrics, logger, backoff seed)
//
// Returns:
//   - *Elector: Initialized elector instance
//   - error: Validation error if configuration is invalid
//
// Example:
//
//	cfg := objelect.DefaultConfig()
//	cfg.ElectionKey = "orders-coordinator"
//	cfg.Callbacks = objelect.Callbacks{
//	    OnStartedLeading: func(ctx context.Context) { go coordinate(ctx) },
//	    OnStoppedLeading: func() { log.Println("lost leadership") },
//	}
//	elector, err := objelect.New(&cfg, store)
func New(cfg *Config, store types.Store, opts ...Option) (*Elector, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	// Fill in missing configuration values with defaults
	SetDefaults(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	options := &electorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	// Each elector gets a reproducible jitter stream derived from its
	// identity unless a seed was pinned explicitly.
	seed := options.backoffSeed
	if !options.backoffSeedSet {
		seed = backoff.SeedFromIdentity(cfg.HolderIdentity)
	}

	e := &Elector{
		cfg:     *cfg,
		store:   store,
		hooks:   hooksInstance,
		metrics: metricsCollector,
		logger:  loggerInstance,
		rng:     backoff.NewRNG(seed),
	}

	// Initialize state
	e.state.Store(int32(StateIdle))
	e.observedLeader.Store("")

	return e, nil
}

// Start begins campaigning for leadership.
//
// Start is non-blocking: it spawns the election loop and returns. The loop
// runs until ctx is cancelled or Stop is called; cancelling ctx triggers the
// same shutdown path as Stop, including the optional lease release.
//
// Parameters:
//   - ctx: Context governing the whole campaign
//
// Returns:
//   - error: ErrAlreadyStarted if the elector is already running
func (e *Elector) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.ctx != nil {
		e.mu.Unlock()

		return ErrAlreadyStarted
	}

	// Create the elector context from the caller's so parent cancellation
	// stops the campaign.
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.logger.Info("starting election campaign",
		"key", e.cfg.ElectionKey,
		"holder", e.cfg.HolderIdentity,
		"leaseDuration", e.cfg.LeaseDuration,
		"renewDeadline", e.cfg.RenewDeadline,
	)

	e.wg.Add(1)
	go e.run()

	return nil
}

// Stop gracefully shuts down the elector.
//
// If the elector is currently leading and ReleaseOnCancel is set, one
// best-effort conditional write clears the holder identity so another
// candidate can take over without waiting out the lease; a failed release is
// logged and the lease expires naturally. Stop blocks until the election
// loop has exited or ctx expires.
//
// Safe to call multiple times - subsequent calls return ErrNotStarted.
//
// Parameters:
//   - ctx: Context bounding the shutdown wait
//
// Returns:
//   - error: ErrNotStarted if never started or already stopped, ctx.Err() on timeout
func (e *Elector) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.ctx == nil || e.stopping || e.State() == StateShutdown {
		e.mu.Unlock()

		return ErrNotStarted
	}
	e.stopping = true

	// Cancel the elector context; the run goroutine performs the release
	// write and final callbacks before exiting.
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("elector stopped gracefully",
			"key", e.cfg.ElectionKey,
			"holder", e.cfg.HolderIdentity,
		)

		return nil
	case <-ctx.Done():
		e.logger.Error("shutdown timeout exceeded, election loop may still be running",
			"key", e.cfg.ElectionKey,
		)

		return ctx.Err()
	}
}

// IsLeader reports whether this elector currently holds the lease.
//
// Returns:
//   - bool: true if leading
func (e *Elector) IsLeader() bool {
	return e.leading.Load()
}

// Leader returns the identity of the most recently observed lease holder,
// which may be this elector itself. Empty until a holder has been observed.
//
// Returns:
//   - string: Last observed holder identity
func (e *Elector) Leader() string {
	if id := e.observedLeader.Load(); id != nil {
		if str, ok := id.(string); ok {
			return str
		}
	}

	return ""
}

// State returns the current election state.
//
// Returns:
//   - State: Current state
func (e *Elector) State() State {
	return State(e.state.Load())
}

// HolderIdentity returns the identity this elector campaigns with.
//
// Returns:
//   - string: Configured holder identity
func (e *Elector) HolderIdentity() string {
	return e.cfg.HolderIdentity
}

// WaitState waits for the elector to reach the expected state within the
// timeout period.
//
// The returned read-only channel receives exactly one value: nil if the
// expected state was reached, context.DeadlineExceeded if the timeout
// expired first. The channel is closed after sending the result.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result (nil on success, error on timeout)
//
// Example:
//
//	if err := <-elector.WaitState(objelect.StateLeading, 10*time.Second); err != nil {
//	    log.Printf("never became leader: %v", err)
//	}
func (e *Elector) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1) // Buffered to prevent goroutine leak

	go func() {
		defer close(ch)

		// Check if already in expected state
		if e.State() == expectedState {
			ch <- nil
			return
		}

		// Poll for state changes
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if e.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// run is the election loop: contend, lead, demote, repeat.
func (e *Elector) run() {
	defer e.wg.Done()

	e.transitionState(e.State(), StateAcquiring)

	for {
		version, record, ok := e.acquire()
		if !ok {
			break
		}

		e.lead(version, record)

		if e.ctx.Err() != nil {
			break
		}

		// Demoted but not stopped: contend again.
		e.transitionState(e.State(), StateAcquiring)
	}

	e.transitionState(e.State(), StateShutdown)
}

// acquire polls the store until this elector is store-confirmed as holder.
// Returns ok=false when the elector context is cancelled first.
//
// Healthy cycles are paced at exactly RetryPeriod; consecutive store
// failures grow a jittered delay toward MaxRetryBackoff. The loop never
// terminates on store errors.
func (e *Elector) acquire() (types.Version, *types.LeaseRecord, bool) {
	var delay time.Duration

	for {
		version, record, won, err := e.tryAcquire()
		if won {
			return version, record, true
		}

		if err != nil && types.IsUnavailable(err) {
			delay = backoff.Jitter(delay, e.cfg.RetryPeriod, backoffMultiplier, e.cfg.MaxRetryBackoff, e.rng)
		} else {
			// Lease still held, lost race, or unreadable record: re-poll at
			// the base cadence.
			delay = backoff.Jitter(0, e.cfg.RetryPeriod, backoffMultiplier, e.cfg.MaxRetryBackoff, e.rng)
		}

		if !e.sleep(delay) {
			return types.NoVersion, nil, false
		}
	}
}

// tryAcquire runs one read-decide-write cycle against the store.
//
// won=true reports a store-confirmed acquisition with the confirming version
// and the written record. A nil error with won=false means the lease is held
// and unexpired; a non-nil error reports a store failure or a lost race.
func (e *Elector) tryAcquire() (types.Version, *types.LeaseRecord, bool, error) {
	current, version, err := e.readRecord(e.ctx)
	if err != nil {
		return types.NoVersion, nil, false, err
	}

	e.observe(current)

	now := time.Now()
	if current != nil && current.HasHolder() && !current.Expired(now) {
		return types.NoVersion, nil, false, nil
	}

	next := e.claimRecord(current, now)

	var newVersion types.Version
	if current == nil {
		newVersion, err = e.createRecord(e.ctx, next)
	} else {
		newVersion, err = e.replaceRecord(e.ctx, next, version)
	}
	if err != nil {
		e.metrics.RecordAcquireAttempt(e.cfg.ElectionKey, false)
		if types.IsConflict(err) {
			e.logger.Debug("lost acquisition race",
				"key", e.cfg.ElectionKey,
				"holder", e.cfg.HolderIdentity,
				"error", err,
			)
		}

		return types.NoVersion, nil, false, err
	}

	e.metrics.RecordAcquireAttempt(e.cfg.ElectionKey, true)
	e.observe(next)

	return newVersion, next, true, nil
}

// claimRecord builds the record for an acquisition attempt over the current
// record (nil when absent). The transition counter carries over and bumps
// only when the prior holder identity differs from ours.
func (e *Elector) claimRecord(current *types.LeaseRecord, now time.Time) *types.LeaseRecord {
	next := &types.LeaseRecord{
		HolderIdentity: e.cfg.HolderIdentity,
		LeaseDuration:  e.cfg.LeaseDuration,
		AcquireTime:    now,
		RenewTime:      now,
	}

	if current != nil {
		next.LeaderTransitions = current.LeaderTransitions
		if current.HolderIdentity != e.cfg.HolderIdentity {
			next.LeaderTransitions++
		}
	}

	return next
}

// lead runs the renewal loop until demotion or shutdown. On entry the
// elector was just store-confirmed as holder of record at version.
func (e *Elector) lead(version types.Version, record *types.LeaseRecord) {
	e.transitionState(e.State(), StateLeading)
	e.leading.Store(true)
	e.metrics.SetLeading(e.cfg.ElectionKey, true)

	e.logger.Info("acquired leadership",
		"key", e.cfg.ElectionKey,
		"holder", e.cfg.HolderIdentity,
		"transitions", record.LeaderTransitions,
	)

	// leaderCtx is cancelled on any demotion so leader work stops with the lease.
	leaderCtx, cancelLeader := context.WithCancel(e.ctx)
	defer cancelLeader()

	e.cfg.Callbacks.OnStartedLeading(leaderCtx)

	// The deadline runs from the last store-confirmed write.
	deadline := time.Now().Add(e.cfg.RenewDeadline)

	for {
		if !e.sleep(e.cfg.RetryPeriod) {
			e.shutdownLeading(cancelLeader, version, record)
			return
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			e.logger.Warn("renew deadline exceeded without a confirmed renewal",
				"key", e.cfg.ElectionKey,
				"holder", e.cfg.HolderIdentity,
				"renewDeadline", e.cfg.RenewDeadline,
			)
			e.demote(cancelLeader, "renew deadline exceeded")

			return
		}

		renewed, newVersion, err := e.renewOnce(record, version, remaining)
		switch {
		case err == nil:
			version = newVersion
			record = renewed
			deadline = time.Now().Add(e.cfg.RenewDeadline)
			e.observe(record)
		case errors.Is(err, types.ErrVersionMismatch):
			// Another candidate rewrote the lease; leadership is gone.
			e.logger.Warn("lease was taken over by another candidate",
				"key", e.cfg.ElectionKey,
				"holder", e.cfg.HolderIdentity,
			)
			e.demote(cancelLeader, "lease version changed")

			return
		default:
			// Store unavailable; keep retrying until the deadline decides.
			e.logger.Warn("renewal attempt failed",
				"key", e.cfg.ElectionKey,
				"holder", e.cfg.HolderIdentity,
				"remaining", time.Until(deadline),
				"error", err,
			)
		}
	}
}

// renewOnce attempts a single lease renewal, bounded by the remaining
// renew deadline (OperationTimeout applies per store call on top).
func (e *Elector) renewOnce(record *types.LeaseRecord, version types.Version, remaining time.Duration) (*types.LeaseRecord, types.Version, error) {
	attemptCtx, cancel := context.WithTimeout(e.ctx, remaining)
	defer cancel()

	renewed := record.Clone()
	renewed.RenewTime = time.Now()

	newVersion, err := e.replaceRecord(attemptCtx, renewed, version)
	e.metrics.RecordRenewal(e.cfg.ElectionKey, err == nil)
	if err != nil {
		return nil, types.NoVersion, err
	}

	return renewed, newVersion, nil
}

// shutdownLeading winds down an active leadership because the elector is
// stopping: optionally releases the lease, then steps down.
func (e *Elector) shutdownLeading(cancelLeader context.CancelFunc, version types.Version, record *types.LeaseRecord) {
	if e.cfg.ReleaseOnCancel {
		e.releaseLease(version, record)
	}

	e.demote(cancelLeader, "elector stopping")
}

// releaseLease performs the best-effort conditional write clearing the
// holder identity so another candidate can take over without waiting out the
// lease. The elector context is already cancelled here, so the write runs
// under its own timeout.
func (e *Elector) releaseLease(version types.Version, record *types.LeaseRecord) {
	released := record.Clone()
	released.HolderIdentity = ""
	released.RenewTime = time.Now()

	if _, err := e.replaceRecord(context.Background(), released, version); err != nil {
		// Non-fatal: the lease simply expires naturally.
		e.logger.Warn("failed to release lease on shutdown",
			"key", e.cfg.ElectionKey,
			"holder", e.cfg.HolderIdentity,
			"error", err,
		)

		return
	}

	e.logger.Info("released lease",
		"key", e.cfg.ElectionKey,
		"holder", e.cfg.HolderIdentity,
	)
}

// demote steps down from leadership: cancels the leader context, transitions
// to Released, and invokes OnStoppedLeading exactly once.
func (e *Elector) demote(cancelLeader context.CancelFunc, reason string) {
	cancelLeader()
	e.leading.Store(false)
	e.metrics.SetLeading(e.cfg.ElectionKey, false)

	e.logger.Info("released leadership",
		"key", e.cfg.ElectionKey,
		"holder", e.cfg.HolderIdentity,
		"reason", reason,
	)

	e.transitionState(e.State(), StateReleased)
	e.cfg.Callbacks.OnStoppedLeading()
}

// observe reports the holder of a freshly read or written record. OnNewLeader
// fires once per change of identity; empty holders are never reported.
func (e *Elector) observe(record *types.LeaseRecord) {
	if record == nil || !record.HasHolder() {
		return
	}

	last, _ := e.observedLeader.Load().(string)
	if record.HolderIdentity == last {
		return
	}

	e.observedLeader.Store(record.HolderIdentity)
	e.metrics.RecordLeadershipChange(e.cfg.ElectionKey, record.HolderIdentity)
	e.logger.Info("observed new leader",
		"key", e.cfg.ElectionKey,
		"leader", record.HolderIdentity,
	)

	if e.cfg.Callbacks.OnNewLeader != nil {
		e.cfg.Callbacks.OnNewLeader(record.HolderIdentity)
	}
}

// readRecord reads the lease record, timing the call for metrics. Like the
// other store wrappers it bounds the call by OperationTimeout on top of any
// deadline already carried by ctx.
func (e *Elector) readRecord(ctx context.Context) (*types.LeaseRecord, types.Version, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	start := time.Now()
	record, version, err := e.store.Read(opCtx, e.cfg.ElectionKey)
	e.metrics.RecordStoreOperation("read", time.Since(start), err)
	if err != nil {
		e.notifyError(err)
		e.logger.Warn("failed to read lease record",
			"key", e.cfg.ElectionKey,
			"error", err,
		)

		return nil, types.NoVersion, err
	}

	return record, version, nil
}

// createRecord installs a fresh lease record where none exists.
func (e *Elector) createRecord(ctx context.Context, record *types.LeaseRecord) (types.Version, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	start := time.Now()
	version, err := e.store.CreateIfAbsent(opCtx, e.cfg.ElectionKey, record)
	e.metrics.RecordStoreOperation("create", time.Since(start), err)
	if err != nil {
		if types.IsUnavailable(err) {
			e.notifyError(err)
		}

		return types.NoVersion, err
	}

	return version, nil
}

// replaceRecord swaps the lease record conditioned on version.
func (e *Elector) replaceRecord(ctx context.Context, record *types.LeaseRecord, version types.Version) (types.Version, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	start := time.Now()
	newVersion, err := e.store.ReplaceIfVersionMatches(opCtx, e.cfg.ElectionKey, record, version)
	e.metrics.RecordStoreOperation("replace", time.Since(start), err)
	if err != nil {
		if types.IsUnavailable(err) {
			e.notifyError(err)
		}

		return types.NoVersion, err
	}

	return newVersion, nil
}

// transitionState transitions to a new state and triggers hooks.
func (e *Elector) transitionState(from, to State) {
	if !e.isValidTransition(from, to) {
		e.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return
	}

	e.state.Store(int32(to)) //nolint:gosec // State values are controlled enum

	e.logger.Info("election state transition",
		"from", from.String(),
		"to", to.String(),
		"key", e.cfg.ElectionKey,
		"holder", e.cfg.HolderIdentity,
	)

	// Trigger state change hook
	if e.hooks.OnStateChanged != nil {
		// Run hook in background to avoid blocking the election loop
		go func() {
			if err := e.hooks.OnStateChanged(e.ctx, from, to); err != nil {
				e.logger.Error("state change hook error", "from", from, "to", to, "error", err)
			}
		}()
	}

	e.metrics.RecordStateTransition(from, to)
}

// isValidTransition validates that a state transition is allowed.
//
// Returns:
//   - bool: true if transition is valid, false otherwise
func (e *Elector) isValidTransition(from, to State) bool {
	// Define valid state transitions
	validTransitions := map[State][]State{
		StateIdle:      {StateAcquiring, StateShutdown},
		StateAcquiring: {StateLeading, StateShutdown},
		StateLeading:   {StateReleased, StateShutdown},
		StateReleased:  {StateAcquiring, StateShutdown},
		StateShutdown:  {}, // Terminal state - no transitions allowed
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return true
		}
	}

	return false
}

// notifyError dispatches a store fault to the error hook.
func (e *Elector) notifyError(err error) {
	if e.hooks.OnError == nil {
		return
	}

	go func() {
		if hookErr := e.hooks.OnError(e.ctx, err); hookErr != nil {
			e.logger.Error("error hook failed", "error", hookErr)
		}
	}()
}

// sleep waits for d or until the elector context is cancelled.
func (e *Elector) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
