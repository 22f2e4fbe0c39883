// Package shardroute provides label-based shard routing for metrics scrape
// targets, generalizing hashmod-style static sharding into a router with
// pluggable algorithms, minimal-churn rebalancing and versioned assignments.
//
// The router consumes target metadata from a service-discovery collaborator
// and shard membership from an orchestration collaborator, and emits shard
// assignments back to the scraping/query systems. It does not scrape, store
// or query metrics itself.
//
// # Quick Start
//
//	cfg := shardroute.Config{
//	    LabelSelector: []string{"job", "instance"},
//	    TargetTTL:     5 * time.Minute,
//	}
//
//	src := source.NewStatic(targets)
//	router, err := shardroute.NewRouter(&cfg, src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := router.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer router.Stop(context.Background())
//
//	router.SetShards([]string{"prom-0", "prom-1", "prom-2"})
//
//	deltas, cancel := router.Subscribe(16)
//	defer cancel()
//	for delta := range deltas {
//	    applyToScrapeConfigs(delta)
//	}
//
// # Architecture
//
// Four components cooperate behind the Router facade:
//
//   - Target Registry: owns target lifecycle (upsert, TTL expiry)
//   - Sharding Strategy: pure hash-to-shard policy (ring, jump, modulo)
//   - Rebalancer: sole writer of assignment state, debounced and fail-closed
//   - Publisher: non-blocking snapshot reads and restartable delta streams
//
// Assignment commits are atomic: consumers observe either the previous
// snapshot or the complete new one, never a partial recomputation.
//
// # Advanced Usage
//
// Custom strategy with options:
//
//	strat := strategy.NewConsistentRing(
//	    strategy.WithVirtualNodes(300),
//	)
//
//	hooks := &shardroute.Hooks{
//	    OnAssignmentChanged: func(ctx context.Context, delta shardroute.AssignmentDelta) error {
//	        return pushToOrchestrator(ctx, delta)
//	    },
//	}
//
//	router, err := shardroute.NewRouter(&cfg, src,
//	    shardroute.WithStrategy(strat),
//	    shardroute.WithHooks(hooks),
//	    shardroute.WithPrometheusMetrics(nil, "shardroute"),
//	)
package shardroute
