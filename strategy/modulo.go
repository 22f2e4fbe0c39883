package strategy

import "github.com/metricfed/shardroute/types"

// Modulo implements hashmod-style bucketing: key % len(shards).
//
// This is the technique used by static sharding relabel configs. It is simple
// and perfectly uniform, but it makes no movement guarantee: changing the
// shard count remaps almost every target. Prefer ConsistentRing or JumpHash
// anywhere membership can change.
type Modulo struct{}

var _ types.ShardingStrategy = (*Modulo)(nil)

// NewModulo creates a new modulo strategy.
//
// Returns:
//   - *Modulo: Initialized modulo strategy
func NewModulo() *Modulo {
	return &Modulo{}
}

// Locate returns key % len(shards).
//
// Parameters:
//   - key: 64-bit routing key
//   - shards: Current shard identifiers
//
// Returns:
//   - int: Owning shard index
//   - error: ErrNoShards when shards is empty
func (m *Modulo) Locate(key uint64, shards []string) (int, error) {
	if len(shards) == 0 {
		return -1, ErrNoShards
	}

	return int(key % uint64(len(shards))), nil
}
