// Package registry owns the lifecycle of scrape targets: ingestion,
// refresh, and TTL-based expiry. It is the only writer of target state.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/metricfed/shardroute/types"
)

// Registry holds the current set of known targets and their labels.
//
// Mutations (Upsert, Remove, Expire) are serialized behind a mutex; reads
// take a snapshot copy so that rebalance computation can proceed concurrently
// with ingestion. Every effective mutation emits a non-blocking change
// notification consumed by the rebalancer.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	targets map[string]types.Target

	// changes is a capacity-1 kick channel: rapid successive mutations
	// coalesce into a single pending notification.
	changes chan struct{}

	// onExpired is invoked from the sweep loop with the removed set.
	onExpired func(expired []types.Target)

	logger  types.Logger
	metrics types.RegistryMetrics

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config bundles the registry dependencies.
type Config struct {
	// TTL is the absence timeout after which unseen targets are removed.
	TTL time.Duration

	// Now is the clock function (defaults to time.Now; injectable for tests).
	Now func() time.Time

	// OnExpired is called with targets removed by the background sweep
	// (optional; Expire callers receive the removed set directly).
	OnExpired func(expired []types.Target)

	Logger  types.Logger
	Metrics types.RegistryMetrics
}

// New creates a target registry.
//
// Parameters:
//   - cfg: Registry configuration (TTL, logger and metrics are required)
//
// Returns:
//   - *Registry: Initialized registry, sweep loop not yet running
func New(cfg Config) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		ttl:       cfg.TTL,
		now:       now,
		targets:   make(map[string]types.Target),
		changes:   make(chan struct{}, 1),
		onExpired: cfg.OnExpired,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Upsert inserts or refreshes a target.
//
// The operation is idempotent on identical label sets: LastSeen is always
// refreshed, but a change notification fires only when the target is new or
// its labels differ from the stored copy.
//
// Parameters:
//   - target: Target to insert or refresh (validated and label-normalized)
//
// Returns:
//   - bool: true when the target set materially changed
//   - error: types.ErrInvalidLabelSet on malformed input
func (r *Registry) Upsert(target types.Target) (bool, error) {
	if err := target.Validate(); err != nil {
		r.metrics.RecordInvalidTarget()
		return false, err
	}

	target.LastSeen = r.now()

	r.mu.Lock()
	existing, ok := r.targets[target.ID]
	changed := !ok || !existing.Labels.Equal(target.Labels)
	r.targets[target.ID] = target
	count := len(r.targets)
	r.mu.Unlock()

	r.metrics.RecordTargetCount(count)

	if changed {
		r.logger.Debug("target upserted", "target_id", target.ID, "labels", len(target.Labels))
		r.kick()
	}

	return changed, nil
}

// Remove deletes a target by ID, typically from an explicit discovery
// delete notification.
//
// Returns:
//   - bool: true when the target existed
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.targets[id]
	if ok {
		delete(r.targets, id)
	}
	count := len(r.targets)
	r.mu.Unlock()

	if ok {
		r.metrics.RecordTargetCount(count)
		r.logger.Debug("target removed", "target_id", id)
		r.kick()
	}

	return ok
}

// Expire removes targets unseen longer than the TTL and returns the removed
// set. A zero TTL disables expiry.
//
// Parameters:
//   - now: Reference time for the absence check
//
// Returns:
//   - []types.Target: Targets removed by this sweep (nil when none)
func (r *Registry) Expire(now time.Time) []types.Target {
	if r.ttl <= 0 {
		return nil
	}

	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var expired []types.Target
	for id, t := range r.targets {
		if t.LastSeen.Before(cutoff) {
			expired = append(expired, t)
			delete(r.targets, id)
		}
	}
	count := len(r.targets)
	r.mu.Unlock()

	if len(expired) > 0 {
		r.metrics.RecordTargetCount(count)
		r.metrics.RecordTargetExpired(len(expired))
		r.logger.Info("targets expired", "count", len(expired), "ttl", r.ttl)
		r.kick()
	}

	return expired
}

// Snapshot returns a copy of all live targets, safe to use concurrently
// with mutations.
func (r *Registry) Snapshot() []types.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]types.Target, 0, len(r.targets))
	for _, t := range r.targets {
		snapshot = append(snapshot, t)
	}

	return snapshot
}

// Len returns the current live target count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.targets)
}

// Changes returns the coalescing change notification channel. At most one
// notification is pending at any time; consumers re-read Snapshot after
// receiving one.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

// Start launches the background expiry sweep. The sweep interval is half the
// TTL so a target is removed at most TTL*1.5 after it was last seen.
//
// Returns:
//   - error: types.ErrAlreadyStarted when called twice
func (r *Registry) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return types.ErrAlreadyStarted
	}

	// Fresh channels so a stopped registry can be started again.
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	if r.ttl <= 0 {
		// Expiry disabled; nothing to sweep.
		close(r.doneCh)
		return nil
	}

	go r.sweepLoop()

	return nil
}

// Stop terminates the background sweep and waits for it to finish.
func (r *Registry) Stop() {
	if !r.started.CompareAndSwap(true, false) {
		return
	}

	close(r.stopCh)
	<-r.doneCh
}

func (r *Registry) sweepLoop() {
	defer close(r.doneCh)

	interval := r.ttl / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			expired := r.Expire(r.now())
			if len(expired) > 0 && r.onExpired != nil {
				r.onExpired(expired)
			}
		}
	}
}

// kick posts a non-blocking change notification.
func (r *Registry) kick() {
	select {
	case r.changes <- struct{}{}:
	default:
		// A notification is already pending; the consumer will observe
		// this mutation when it reads the next snapshot.
	}
}
