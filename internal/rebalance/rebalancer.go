// Package rebalance contains the assignment rebalancer: the single writer of
// assignment state. It serializes all recomputation behind one worker
// goroutine, debounces bursty triggers, abandons stale computations, and
// commits snapshots atomically into the publisher.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/metricfed/shardroute/internal/publish"
	"github.com/metricfed/shardroute/types"
)

// Rebalance trigger reasons, used for logging and metrics labels.
const (
	TriggerTargets = "targets"
	TriggerShards  = "shards"
	TriggerRefresh = "refresh"
)

// errAbandoned signals that a newer trigger arrived mid-computation and the
// current result must be discarded in favor of recomputing.
var errAbandoned = errors.New("rebalance abandoned")

// abandonCheckStride is how many targets are located between staleness
// checks during a computation pass.
const abandonCheckStride = 512

// Config bundles the rebalancer dependencies and tuning knobs.
type Config struct {
	// Strategy locates the owning shard for each routing key.
	Strategy types.ShardingStrategy

	// LabelSelector names the labels forming the routing key (nil = all).
	LabelSelector []string

	// HashSeed is the base seed for routing key derivation.
	HashSeed uint64

	// Debounce is the coalescing window for bursty triggers.
	Debounce time.Duration

	// RetryAttempts bounds strategy-error retries per rebalance.
	RetryAttempts int

	// RetryBase, RetryMultiplier and RetryCap shape the retry backoff.
	RetryBase       time.Duration
	RetryMultiplier float64
	RetryCap        time.Duration

	// Snapshot reads the current live target set from the registry.
	Snapshot func() []types.Target

	// TargetChanges is the registry's coalescing change channel.
	TargetChanges <-chan struct{}

	// Publisher receives committed snapshots and deltas.
	Publisher *publish.Publisher

	Hooks   *types.Hooks
	Logger  types.Logger
	Metrics types.RebalanceMetrics
}

// Validate checks that required dependencies are present.
func (c *Config) Validate() error {
	if c.Strategy == nil {
		return fmt.Errorf("%w: strategy is required", types.ErrInvalidConfig)
	}
	if c.Snapshot == nil {
		return fmt.Errorf("%w: target snapshot function is required", types.ErrInvalidConfig)
	}
	if c.Publisher == nil {
		return fmt.Errorf("%w: publisher is required", types.ErrInvalidConfig)
	}
	if c.Logger == nil {
		return fmt.Errorf("%w: logger is required", types.ErrInvalidConfig)
	}
	if c.Metrics == nil {
		return fmt.Errorf("%w: metrics collector is required", types.ErrInvalidConfig)
	}

	return nil
}

// SetDefaults fills zero-valued tuning knobs.
func (c *Config) SetDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = 250 * time.Millisecond
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 50 * time.Millisecond
	}
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = 2.0
	}
	if c.RetryCap <= 0 {
		c.RetryCap = time.Second
	}
}

// Rebalancer owns the assignment lifecycle.
//
// All mutations funnel through a single worker goroutine, so concurrent
// target and shard notifications never produce interleaved partial
// recomputation. A rebalance either commits a full consistent snapshot into
// the publisher or leaves the previous one untouched.
type Rebalancer struct {
	cfg Config

	mu       sync.RWMutex
	shardSet types.ShardSet

	// generation is bumped on every trigger; a computation started against
	// an older generation abandons itself.
	generation atomic.Int64

	kicks      chan struct{}
	reasonMu   sync.Mutex
	nextReason string

	hookCtx context.Context

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a rebalancer with validated configuration.
//
// Parameters:
//   - cfg: Rebalancer configuration (required fields must be set)
//
// Returns:
//   - *Rebalancer: New rebalancer, worker not yet running
//   - error: Validation error when required fields are missing
func New(cfg Config) (*Rebalancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	return &Rebalancer{
		cfg:     cfg,
		kicks:   make(chan struct{}, 1),
		hookCtx: context.Background(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start launches the rebalance worker.
//
// Parameters:
//   - ctx: Lifecycle context passed to hooks; cancelled on shutdown
//
// Returns:
//   - error: types.ErrAlreadyStarted when called twice
func (r *Rebalancer) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return types.ErrAlreadyStarted
	}

	// Fresh channels so a stopped rebalancer can be started again.
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	r.hookCtx = ctx
	go r.loop()

	return nil
}

// Stop terminates the worker and waits for it to finish. An in-flight
// computation is abandoned.
func (r *Rebalancer) Stop() {
	if !r.started.CompareAndSwap(true, false) {
		return
	}

	close(r.stopCh)
	<-r.doneCh
}

// SetShards replaces the shard membership.
//
// Order is preserved and duplicates are dropped; jump-hash deployments rely
// on append-only ordering. An identical membership is a no-op. The new set
// gets the next version and a rebalance is triggered. An empty set is
// recorded (shard loss must be observable) but rebalancing fails closed
// against it, keeping the last-known-good assignment.
//
// Parameters:
//   - shards: New shard identifiers
//
// Returns:
//   - types.ShardSet: The current membership after the call
func (r *Rebalancer) SetShards(shards []string) types.ShardSet {
	seen := make(map[string]struct{}, len(shards))
	uniq := make([]string, 0, len(shards))
	for _, s := range shards {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		uniq = append(uniq, s)
	}

	r.mu.Lock()
	if slices.Equal(r.shardSet.Shards, uniq) {
		current := r.shardSet.Clone()
		r.mu.Unlock()

		return current
	}

	r.shardSet.Shards = uniq
	r.shardSet.Version++
	current := r.shardSet.Clone()
	r.mu.Unlock()

	r.cfg.Metrics.RecordShardCount(len(uniq))
	r.cfg.Logger.Info("shard membership changed",
		"shards", len(uniq), "shard_set_version", current.Version)

	r.generation.Add(1)
	r.kick(TriggerShards)

	return current
}

// ShardSet returns a copy of the current shard membership.
func (r *Rebalancer) ShardSet() types.ShardSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.shardSet.Clone()
}

// TriggerRefresh requests a rebalance outside of change notifications, for
// example after a manual target refresh.
func (r *Rebalancer) TriggerRefresh() {
	r.generation.Add(1)
	r.kick(TriggerRefresh)
}

// kick posts a non-blocking trigger, merging the reason with any pending
// one. Shard changes take precedence for the metrics label.
func (r *Rebalancer) kick(reason string) {
	r.reasonMu.Lock()
	if r.nextReason == "" || reason == TriggerShards {
		r.nextReason = reason
	}
	r.reasonMu.Unlock()

	select {
	case r.kicks <- struct{}{}:
	default:
	}
}

// takeReason consumes the pending trigger reason.
func (r *Rebalancer) takeReason() string {
	r.reasonMu.Lock()
	defer r.reasonMu.Unlock()

	reason := r.nextReason
	r.nextReason = ""
	if reason == "" {
		reason = TriggerTargets
	}

	return reason
}

func (r *Rebalancer) loop() {
	defer close(r.doneCh)

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.cfg.TargetChanges:
			r.noteTargetChange()
		case <-r.kicks:
		}

		// Debounce: coalesce rapid successive triggers into one pass.
		timer := time.NewTimer(r.cfg.Debounce)
	drain:
		for {
			select {
			case <-r.stopCh:
				timer.Stop()
				return
			case <-r.cfg.TargetChanges:
				r.noteTargetChange()
			case <-r.kicks:
			case <-timer.C:
				break drain
			}
		}

		r.rebalance(r.takeReason())
	}
}

func (r *Rebalancer) noteTargetChange() {
	r.reasonMu.Lock()
	if r.nextReason == "" {
		r.nextReason = TriggerTargets
	}
	r.reasonMu.Unlock()
}

// rebalance runs one full recomputation pass and commits the result.
//
// Fail-closed behavior: an empty shard set or an exhausted retry budget
// leaves the previously committed assignment and version untouched.
func (r *Rebalancer) rebalance(trigger string) {
	started := time.Now()
	gen := r.generation.Load()
	shardSet := r.ShardSet()
	prev, _ := r.cfg.Publisher.Current()

	if len(shardSet.Shards) == 0 {
		r.cfg.Metrics.RecordRebalanceAttempt(trigger, false)
		r.cfg.Metrics.RecordRetainedAssignment("empty_shard_set")
		r.cfg.Logger.Warn("rebalance failed closed: empty shard set, retaining assignment",
			"retained_version", prev.Version, "trigger", trigger)
		r.fireError(types.ErrEmptyShardSet)

		return
	}

	targets := r.cfg.Snapshot()

	placed, err := r.computeWithRetry(targets, shardSet, gen)
	if errors.Is(err, errAbandoned) {
		// A newer trigger is pending; the loop reruns against fresh state.
		r.cfg.Logger.Debug("rebalance abandoned for newer state", "trigger", trigger)
		return
	}
	if err != nil {
		r.cfg.Metrics.RecordRebalanceAttempt(trigger, false)
		r.cfg.Metrics.RecordRetainedAssignment("computation_error")
		r.cfg.Logger.Error("rebalance failed closed: computation error, retaining assignment",
			"error", err, "retained_version", prev.Version, "trigger", trigger)
		r.fireError(fmt.Errorf("%w: %w", types.ErrRouterComputation, err))

		return
	}

	delta := diff(prev.Targets, placed)
	if delta.Empty() && prev.Version > 0 && prev.ShardSetVersion == shardSet.Version {
		// Nothing moved and the membership tag is current; skip the commit
		// to avoid version churn on no-op refreshes.
		r.cfg.Metrics.RecordRebalanceAttempt(trigger, true)
		return
	}

	assignment := types.Assignment{
		Version:         prev.Version + 1,
		ShardSetVersion: shardSet.Version,
		Targets:         placed,
	}
	delta.Version = assignment.Version
	delta.ShardSetVersion = assignment.ShardSetVersion

	r.cfg.Publisher.Commit(assignment, delta)

	r.cfg.Metrics.RecordRebalanceAttempt(trigger, true)
	r.cfg.Metrics.RecordRebalanceDuration(time.Since(started).Seconds(), trigger)
	r.cfg.Metrics.RecordMoves(len(delta.Moves))
	r.cfg.Logger.Info("assignment committed",
		"version", assignment.Version,
		"shard_set_version", assignment.ShardSetVersion,
		"targets", len(placed),
		"moves", len(delta.Moves),
		"trigger", trigger,
		"elapsed", time.Since(started))

	if r.cfg.Hooks != nil && r.cfg.Hooks.OnAssignmentChanged != nil {
		hook := r.cfg.Hooks.OnAssignmentChanged
		go func() {
			if err := hook(r.hookCtx, delta); err != nil {
				r.cfg.Logger.Warn("assignment change hook failed", "error", err)
			}
		}()
	}
}

// computeWithRetry locates every target, retrying transient strategy errors
// with jittered backoff before giving up.
func (r *Rebalancer) computeWithRetry(targets []types.Target, shardSet types.ShardSet, gen int64) (map[string]string, error) {
	var delay time.Duration
	var lastErr error

	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay = jitterBackoff(delay, r.cfg.RetryBase, r.cfg.RetryMultiplier, r.cfg.RetryCap)
			r.cfg.Logger.Debug("retrying rebalance computation", "attempt", attempt, "backoff", delay)

			select {
			case <-r.stopCh:
				return nil, errAbandoned
			case <-time.After(delay):
			}

			if r.stale(gen) {
				return nil, errAbandoned
			}
		}

		placed, err := r.locateAll(targets, shardSet, gen)
		if err == nil || errors.Is(err, errAbandoned) {
			return placed, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// locateAll maps every target to its owning shard, checking for staleness
// between strides so a long pass yields to newer triggers.
func (r *Rebalancer) locateAll(targets []types.Target, shardSet types.ShardSet, gen int64) (map[string]string, error) {
	placed := make(map[string]string, len(targets))

	for i, target := range targets {
		if i%abandonCheckStride == 0 && r.stale(gen) {
			return nil, errAbandoned
		}

		key := target.HashKey(r.cfg.LabelSelector, r.cfg.HashSeed)
		idx, err := r.cfg.Strategy.Locate(key, shardSet.Shards)
		if err != nil {
			return nil, fmt.Errorf("locate target %q: %w", target.ID, err)
		}
		placed[target.ID] = shardSet.Shards[idx]
	}

	return placed, nil
}

// stale reports whether a newer trigger supersedes the computation that
// started at generation gen.
func (r *Rebalancer) stale(gen int64) bool {
	return r.generation.Load() != gen || len(r.cfg.TargetChanges) > 0
}

func (r *Rebalancer) fireError(err error) {
	if r.cfg.Hooks == nil || r.cfg.Hooks.OnError == nil {
		return
	}

	hook := r.cfg.Hooks.OnError
	go func() {
		if hookErr := hook(r.hookCtx, err); hookErr != nil {
			r.cfg.Logger.Warn("error hook failed", "error", hookErr)
		}
	}()
}

// diff computes the moves between two placements: new placements, shard
// changes, and removals. Moves are sorted by target ID for deterministic
// delta payloads.
func diff(prev, next map[string]string) types.AssignmentDelta {
	var moves []types.Move

	for id, shard := range next {
		if from, ok := prev[id]; !ok {
			moves = append(moves, types.Move{TargetID: id, To: shard})
		} else if from != shard {
			moves = append(moves, types.Move{TargetID: id, From: from, To: shard})
		}
	}
	for id, from := range prev {
		if _, ok := next[id]; !ok {
			moves = append(moves, types.Move{TargetID: id, From: from})
		}
	}

	sort.Slice(moves, func(i, j int) bool { return moves[i].TargetID < moves[j].TargetID })

	return types.AssignmentDelta{Moves: moves}
}
