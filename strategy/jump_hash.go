package strategy

import (
	"github.com/metricfed/shardroute/internal/hash"
	"github.com/metricfed/shardroute/types"
)

// JumpHash implements the jump consistent hash strategy.
//
// Jump hashing needs no per-shard state and guarantees that growing the
// shard list from N to N+1 moves only ~1/(N+1) of keys, all of them onto the
// new shard. The guarantee is positional: the shard list must be treated as
// append-only (remove only from the tail) or movement degrades to modulo-like
// behavior. The router preserves caller order of SetShards for this reason.
type JumpHash struct{}

var _ types.ShardingStrategy = (*JumpHash)(nil)

// NewJumpHash creates a new jump consistent hash strategy.
//
// Returns:
//   - *JumpHash: Initialized jump hash strategy
func NewJumpHash() *JumpHash {
	return &JumpHash{}
}

// Locate returns the jump hash bucket for the given key.
//
// Parameters:
//   - key: 64-bit routing key
//   - shards: Current shard identifiers (treated positionally)
//
// Returns:
//   - int: Owning shard index
//   - error: ErrNoShards when shards is empty
func (j *JumpHash) Locate(key uint64, shards []string) (int, error) {
	idx := hash.Jump(key, len(shards))
	if idx < 0 {
		return -1, ErrNoShards
	}

	return idx, nil
}
