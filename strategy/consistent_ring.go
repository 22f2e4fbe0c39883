package strategy

import (
	"slices"
	"sync"

	"github.com/metricfed/shardroute/internal/hash"
	"github.com/metricfed/shardroute/types"
)

// ConsistentRing implements consistent hashing with virtual nodes.
type ConsistentRing struct {
	virtualNodes int
	hashSeed     uint64

	// The ring for the current shard list is memoized so that locating every
	// target during a rebalance builds it once, not once per target.
	mu         sync.Mutex
	lastShards []string
	lastRing   *hash.Ring
}

var _ types.ShardingStrategy = (*ConsistentRing)(nil)

// ConsistentRingOption configures a ConsistentRing strategy.
type ConsistentRingOption func(*ConsistentRing)

// NewConsistentRing creates a new consistent hash ring strategy.
//
// The strategy uses a hash ring with virtual nodes to distribute targets
// evenly across shards while minimizing target movement during membership
// changes: adding a shard moves only the keys falling into the new shard's
// ring ranges, and removing a shard redistributes only that shard's keys to
// its ring neighbors.
//
// Parameters:
//   - opts: Optional configuration (WithVirtualNodes, WithHashSeed)
//
// Returns:
//   - *ConsistentRing: Initialized consistent ring strategy
//
// Example:
//
//	strat := strategy.NewConsistentRing(
//	    strategy.WithVirtualNodes(300),
//	)
//	router, err := shardroute.NewRouter(&cfg, src, shardroute.WithStrategy(strat))
func NewConsistentRing(opts ...ConsistentRingOption) *ConsistentRing {
	cr := &ConsistentRing{
		virtualNodes: 150, // default
		hashSeed:     0,
	}

	for _, opt := range opts {
		opt(cr)
	}

	return cr
}

// WithVirtualNodes sets the number of virtual nodes per shard.
//
// Higher values provide better distribution but increase memory usage.
// Recommended range: 100-300 (default: 150).
//
// Parameters:
//   - nodes: Number of virtual nodes per shard
//
// Returns:
//   - ConsistentRingOption: Configuration option
func WithVirtualNodes(nodes int) ConsistentRingOption {
	return func(cr *ConsistentRing) {
		cr.virtualNodes = nodes
	}
}

// WithHashSeed sets a custom hash seed for ring placement.
//
// Parameters:
//   - seed: Hash seed value
//
// Returns:
//   - ConsistentRingOption: Configuration option
func WithHashSeed(seed uint64) ConsistentRingOption {
	return func(cr *ConsistentRing) {
		cr.hashSeed = seed
	}
}

// Locate returns the ring position owner for the given key.
//
// Parameters:
//   - key: 64-bit routing key
//   - shards: Current shard identifiers
//
// Returns:
//   - int: Owning shard index
//   - error: ErrNoShards when shards is empty
func (cr *ConsistentRing) Locate(key uint64, shards []string) (int, error) {
	if len(shards) == 0 {
		return -1, ErrNoShards
	}

	idx := cr.ring(shards).Locate(key)
	if idx < 0 {
		return -1, ErrNoShards
	}

	return idx, nil
}

// ring returns the memoized ring for shards, rebuilding it on change.
func (cr *ConsistentRing) ring(shards []string) *hash.Ring {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.lastRing != nil && slices.Equal(cr.lastShards, shards) {
		return cr.lastRing
	}

	cr.lastShards = slices.Clone(shards)
	cr.lastRing = hash.NewRing(shards, cr.virtualNodes, cr.hashSeed)

	return cr.lastRing
}
