package shardroute

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/metricfed/shardroute/internal/logging"
	"github.com/metricfed/shardroute/internal/metrics"
	"github.com/metricfed/shardroute/internal/natsutil"
	"github.com/metricfed/shardroute/internal/publish"
	"github.com/metricfed/shardroute/internal/rebalance"
	"github.com/metricfed/shardroute/internal/registry"
	"github.com/metricfed/shardroute/strategy"
	"github.com/metricfed/shardroute/types"
)

// Router is the authoritative shard-routing instance.
//
// It wires the target registry, sharding strategy, rebalancer and publisher
// into one process-wide state object with explicit init and teardown. All
// state is injected; nothing is read from ambient globals. The router is
// designed as a single authoritative instance: running several requires an
// external consensus store for shard membership and is out of scope.
type Router struct {
	cfg    Config
	source types.TargetSource

	registry   *registry.Registry
	rebalancer *rebalance.Rebalancer
	publisher  *publish.Publisher

	sinks   []types.AssignmentSink
	hooks   *types.Hooks
	logger  types.Logger
	metrics types.MetricsCollector

	// lifecycleCtx is cancelled on Stop; hooks and sinks receive it.
	lifecycleCtx    context.Context
	lifecycleCancel context.CancelFunc
	ctxMu           sync.RWMutex

	started atomic.Bool
	pumpWG  sync.WaitGroup
}

// NewRouter creates a router from configuration and a target source.
//
// Parameters:
//   - cfg: Router configuration (validated; defaults applied)
//   - src: Target discovery source (required)
//   - opts: Optional dependencies (WithStrategy, WithLogger, WithMetrics,
//     WithHooks, WithSink)
//
// Returns:
//   - *Router: Initialized router, not yet started
//   - error: Validation error for bad configuration or missing source
//
// Example:
//
//	cfg := shardroute.Config{LabelSelector: []string{"job", "instance"}}
//	router, err := shardroute.NewRouter(&cfg, source.NewStatic(targets))
func NewRouter(cfg *Config, src types.TargetSource, opts ...Option) (*Router, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if src == nil {
		return nil, ErrTargetSourceRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	options := &routerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		logger = logging.NewSlogDefault()
	}
	collector := options.metrics
	if collector == nil {
		collector = metrics.NewNop()
	}

	strat := options.strategy
	if strat == nil {
		strat = buildStrategy(cfg)
	}

	r := &Router{
		cfg:     *cfg,
		source:  src,
		sinks:   options.sinks,
		hooks:   options.hooks,
		logger:  logger,
		metrics: collector,
	}

	r.registry = registry.New(registry.Config{
		TTL:       cfg.TargetTTL,
		Now:       options.now,
		OnExpired: r.fireTargetsExpired,
		Logger:    logger,
		Metrics:   collector,
	})

	r.publisher = publish.New(logger, collector)

	rebalancer, err := rebalance.New(rebalance.Config{
		Strategy:        strat,
		LabelSelector:   cfg.LabelSelector,
		HashSeed:        cfg.HashSeed,
		Debounce:        cfg.RebalanceDebounce,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBase:       cfg.RetryBaseBackoff,
		RetryCap:        cfg.RetryMaxBackoff,
		RetryMultiplier: 2.0,
		Snapshot:        r.registry.Snapshot,
		TargetChanges:   r.registry.Changes(),
		Publisher:       r.publisher,
		Hooks:           options.hooks,
		Logger:          logger,
		Metrics:         collector,
	})
	if err != nil {
		return nil, err
	}
	r.rebalancer = rebalancer

	return r, nil
}

// buildStrategy maps the configured algorithm name to an implementation.
func buildStrategy(cfg *Config) types.ShardingStrategy {
	switch cfg.ShardingAlgorithm {
	case AlgorithmModulo:
		return strategy.NewModulo()
	case AlgorithmJumpHash:
		return strategy.NewJumpHash()
	default:
		return strategy.NewConsistentRing(
			strategy.WithVirtualNodes(cfg.VirtualNodes),
			strategy.WithHashSeed(cfg.HashSeed),
		)
	}
}

// Start performs initial target discovery and launches the background
// workers (registry sweep, rebalancer, sink pump).
//
// Parameters:
//   - ctx: Context for the initial discovery call only; the router's
//     lifecycle is bounded by Stop, not by this context
//
// Returns:
//   - error: ErrAlreadyStarted on a second call, or a discovery failure
func (r *Router) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	lifecycleCtx, cancel := context.WithCancel(context.Background())
	r.ctxMu.Lock()
	r.lifecycleCtx = lifecycleCtx
	r.lifecycleCancel = cancel
	r.ctxMu.Unlock()

	if err := r.syncFromSource(ctx); err != nil {
		r.started.Store(false)
		cancel()

		return fmt.Errorf("initial target discovery: %w", err)
	}

	if err := r.registry.Start(); err != nil {
		r.started.Store(false)
		cancel()

		return err
	}
	if err := r.rebalancer.Start(lifecycleCtx); err != nil {
		r.registry.Stop()
		r.started.Store(false)
		cancel()

		return err
	}

	if len(r.sinks) > 0 {
		r.pumpWG.Add(1)
		go r.sinkPump(lifecycleCtx)
	}

	r.logger.Info("router started",
		"targets", r.registry.Len(),
		"algorithm", r.cfg.ShardingAlgorithm,
		"label_selector", r.cfg.LabelSelector)

	return nil
}

// Stop terminates all background workers and closes subscriptions.
//
// Parameters:
//   - ctx: Bound on how long to wait for the sink pump to drain
//
// Returns:
//   - error: ErrNotStarted when the router is not running, or ctx.Err()
//     when draining exceeded the context deadline
func (r *Router) Stop(ctx context.Context) error {
	if !r.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}

	r.rebalancer.Stop()
	r.registry.Stop()
	r.publisher.Close()

	r.ctxMu.RLock()
	cancel := r.lifecycleCancel
	r.ctxMu.RUnlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.pumpWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.logger.Info("router stopped")

	return nil
}

// UpsertTarget ingests a discovery notification for one target.
//
// Idempotent on identical label sets. Invalid targets are rejected without
// touching existing assignments.
//
// Parameters:
//   - target: Target to insert or refresh
//
// Returns:
//   - error: ErrInvalidLabelSet on malformed input
func (r *Router) UpsertTarget(target types.Target) error {
	_, err := r.registry.Upsert(target)

	return err
}

// RemoveTarget ingests a discovery delete notification.
//
// Returns:
//   - bool: true when the target was known
func (r *Router) RemoveTarget(id string) bool {
	return r.registry.Remove(id)
}

// Targets returns a snapshot of the live target set.
func (r *Router) Targets() []types.Target {
	return r.registry.Snapshot()
}

// SetShards ingests a shard-membership notification from the orchestration
// collaborator. Identical membership is a no-op; otherwise the set gets the
// next version and a debounced rebalance is triggered.
//
// Parameters:
//   - shards: New shard identifiers (order preserved, duplicates dropped)
//
// Returns:
//   - types.ShardSet: Current membership after the call
func (r *Router) SetShards(shards []string) types.ShardSet {
	return r.rebalancer.SetShards(shards)
}

// ShardSet returns a copy of the current shard membership.
func (r *Router) ShardSet() types.ShardSet {
	return r.rebalancer.ShardSet()
}

// Current returns the latest committed assignment snapshot and version.
// The read is non-blocking and never observes a partial rebalance.
func (r *Router) Current() (types.Assignment, int64) {
	return r.publisher.Current()
}

// Subscribe returns a restartable assignment delta stream. The first event
// is a full-state snapshot delta; delivery of subsequent deltas is
// at-least-once. See publish.Publisher.Subscribe for details.
func (r *Router) Subscribe(buffer int) (<-chan types.AssignmentDelta, func()) {
	return r.publisher.Subscribe(buffer)
}

// RefreshTargets re-pulls the target source and reconciles the registry
// against it: new targets are upserted, vanished targets removed.
//
// Parameters:
//   - ctx: Context for the discovery call
//
// Returns:
//   - error: ErrNotStarted when the router is not running, or a discovery
//     failure (registry state is untouched on failure)
func (r *Router) RefreshTargets(ctx context.Context) error {
	if !r.started.Load() {
		return ErrNotStarted
	}

	if err := r.syncFromSource(ctx); err != nil {
		return err
	}

	r.rebalancer.TriggerRefresh()

	return nil
}

// syncFromSource reconciles the registry with the source's current list.
func (r *Router) syncFromSource(ctx context.Context) error {
	targets, err := r.source.ListTargets(ctx)
	if err != nil {
		return err
	}

	listed := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if _, err := r.registry.Upsert(target); err != nil {
			// One malformed target must not poison the whole sync.
			r.logger.Warn("skipping invalid target from source", "target_id", target.ID, "error", err)
			continue
		}
		listed[target.ID] = struct{}{}
	}

	for _, known := range r.registry.Snapshot() {
		if _, ok := listed[known.ID]; !ok {
			r.registry.Remove(known.ID)
		}
	}

	return nil
}

// sinkPump forwards every committed assignment to the attached sinks.
func (r *Router) sinkPump(ctx context.Context) {
	defer r.pumpWG.Done()

	deltas, cancel := r.publisher.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case delta, ok := <-deltas:
			if !ok {
				return
			}

			snapshot, _ := r.publisher.Current()
			for _, s := range r.sinks {
				err := s.Publish(ctx, snapshot, delta)
				if err == nil {
					continue
				}

				// At-least-once: the sink sees this state again with the
				// next committed version.
				if natsutil.IsConnectivityError(err) {
					r.logger.Warn("assignment sink unreachable",
						"version", delta.Version, "error", err)
				} else {
					r.logger.Error("assignment sink publish failed",
						"version", delta.Version, "error", err)
				}
			}
		}
	}
}

// fireTargetsExpired invokes the OnTargetsExpired hook asynchronously.
func (r *Router) fireTargetsExpired(expired []types.Target) {
	if r.hooks == nil || r.hooks.OnTargetsExpired == nil {
		return
	}

	r.ctxMu.RLock()
	ctx := r.lifecycleCtx
	r.ctxMu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	hook := r.hooks.OnTargetsExpired
	go func() {
		if err := hook(ctx, expired); err != nil {
			r.logger.Warn("target expiry hook failed", "error", err)
		}
	}()
}
