// Package strategy provides built-in sharding strategy implementations.
//
// Sharding strategies determine which shard owns a routing key. The package
// includes three built-in strategies:
//
//   - ConsistentRing: Consistent hashing with virtual nodes (recommended default)
//   - JumpHash: Jump consistent hash (minimal state, append-only shard sets)
//   - Modulo: key % shardCount, the classic hashmod relabeling technique
//
// # Strategy Selection Guide
//
// ConsistentRing:
//   - Use when shards can be added and removed in any order
//   - On shard removal only that shard's targets redistribute to ring neighbors
//   - Configuration: virtual nodes, hash seed
//
// JumpHash:
//   - Use when the shard list only ever grows (or shrinks from the tail)
//   - Smallest memory footprint and fastest lookup
//   - Keys only move to the newly added shard on growth
//
// Modulo:
//   - Matches hashmod-style static sharding configs exactly
//   - Every shard count change remaps roughly (N-1)/N of all targets
//   - Use only when membership is fixed
//
// Custom strategies can be implemented by satisfying the
// types.ShardingStrategy interface.
package strategy
