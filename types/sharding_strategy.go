package types

// ShardingStrategy locates the owning shard for a routing key.
//
// Strategies implement different bucketing algorithms:
//   - Modulo: key % len(shards), the classic hashmod relabeling technique
//   - ConsistentRing: virtual-node hash ring, minimal movement on any change
//   - JumpHash: jump consistent hash, minimal movement for append-only sets
//
// Strategy implementations must:
//   - Be deterministic (same key and shard list always yields the same index)
//   - Be stateless and safe for concurrent use
//   - Run quickly (called once per target on every rebalance)
//
// Minimal-movement guarantees under membership change belong to the strategy;
// the rebalancer only diffs the located shards against the committed
// assignment. Modulo deliberately makes no such guarantee.
type ShardingStrategy interface {
	// Locate returns the index into shards that owns the given key.
	//
	// Parameters:
	//   - key: 64-bit routing key derived from the target's labels
	//   - shards: Current shard identifiers, ordered and unique
	//
	// Returns:
	//   - int: Index of the owning shard
	//   - error: ErrEmptyShardSet-compatible error when shards is empty
	Locate(key uint64, shards []string) (int, error)
}
