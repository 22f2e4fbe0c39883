package shardroute

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/metricfed/shardroute/internal/metrics"
	"github.com/metricfed/shardroute/types"
)

// Option configures a Router with optional dependencies.
type Option func(*routerOptions)

// routerOptions holds optional Router configuration.
type routerOptions struct {
	strategy types.ShardingStrategy
	hooks    *types.Hooks
	metrics  types.MetricsCollector
	logger   types.Logger
	sinks    []AssignmentSink
	now      func() time.Time
}

// WithStrategy sets a custom sharding strategy, overriding the algorithm
// named in Config.ShardingAlgorithm.
//
// Parameters:
//   - strategy: ShardingStrategy implementation
//
// Returns:
//   - Option: Functional option for NewRouter
//
// Example:
//
//	strat := strategy.NewConsistentRing(strategy.WithVirtualNodes(300))
//	router, err := shardroute.NewRouter(&cfg, src, shardroute.WithStrategy(strat))
func WithStrategy(strategy types.ShardingStrategy) Option {
	return func(o *routerOptions) {
		o.strategy = strategy
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewRouter
func WithHooks(hooks *types.Hooks) Option {
	return func(o *routerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewRouter
func WithMetrics(collector types.MetricsCollector) Option {
	return func(o *routerOptions) {
		o.metrics = collector
	}
}

// WithPrometheusMetrics instruments the router with Prometheus metrics
// registered on the given registerer.
//
// Parameters:
//   - reg: Prometheus registerer (nil uses prometheus.DefaultRegisterer)
//   - namespace: Metric namespace (empty uses "shardroute")
//
// Returns:
//   - Option: Functional option for NewRouter
//
// Example:
//
//	router, err := shardroute.NewRouter(&cfg, src,
//	    shardroute.WithPrometheusMetrics(nil, "shardroute"))
func WithPrometheusMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *routerOptions) {
		o.metrics = metrics.NewPrometheus(reg, namespace)
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewRouter
func WithLogger(logger types.Logger) Option {
	return func(o *routerOptions) {
		o.logger = logger
	}
}

// WithClock overrides the time source used for target LastSeen stamps and
// TTL expiry. Intended for tests that need deterministic expiry.
//
// Parameters:
//   - now: Replacement for time.Now
//
// Returns:
//   - Option: Functional option for NewRouter
func WithClock(now func() time.Time) Option {
	return func(o *routerOptions) {
		o.now = now
	}
}

// WithSink attaches an assignment sink that receives every committed
// snapshot and delta, e.g. sink.NATSKV for external consumers. May be
// repeated to attach several sinks.
//
// Parameters:
//   - s: AssignmentSink implementation
//
// Returns:
//   - Option: Functional option for NewRouter
func WithSink(s AssignmentSink) Option {
	return func(o *routerOptions) {
		o.sinks = append(o.sinks, s)
	}
}
