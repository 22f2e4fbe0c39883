package hash

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/xxh3"
)

// Ring implements a consistent hash ring with virtual nodes.
//
// The ring maps routing keys to shards, which provides stable assignments
// with minimal target movement when shard membership changes.
type Ring struct {
	// nodes contains all virtual nodes on the ring, sorted by hash
	nodes []virtualNode

	// shards holds the unique list of shards present on the ring
	shards []string

	// seed for hash function (0 means unseeded)
	seed uint64
}

// virtualNode represents a virtual node on the hash ring.
type virtualNode struct {
	hash     uint64 // Position on the ring
	shardIdx int    // Index of the owning shard in shards slice
}

// NewRing creates a new consistent hash ring.
//
// Parameters:
//   - shards: List of shard IDs to place on the ring
//   - virtualNodesPerShard: Number of virtual nodes per shard (higher = better distribution)
//   - seed: Seed for hash function (0 for unseeded, non-zero for domain separation)
//
// Returns:
//   - *Ring: Initialized hash ring
//
// Example:
//
//	ring := hash.NewRing([]string{"shard-a", "shard-b"}, 150, 0)
//	idx := ring.Locate(key)
func NewRing(shards []string, virtualNodesPerShard int, seed uint64) *Ring {
	ring := &Ring{
		nodes: make([]virtualNode, 0, len(shards)*virtualNodesPerShard),
		seed:  seed,
	}

	// Deduplicate shards while preserving order
	if len(shards) > 0 {
		seen := make(map[string]struct{}, len(shards))
		uniq := make([]string, 0, len(shards))
		for _, s := range shards {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			uniq = append(uniq, s)
		}
		ring.shards = uniq
	} else {
		ring.shards = []string{}
	}

	for i, shardID := range ring.shards {
		ring.addShard(shardID, i, virtualNodesPerShard)
	}

	// Sort nodes by hash for binary search
	slices.SortFunc(ring.nodes, func(a, b virtualNode) int {
		if a.hash < b.hash {
			return -1
		}
		if a.hash > b.hash {
			return 1
		}

		return 0
	})

	return ring
}

// Locate returns the shard index responsible for the given routing key, or
// -1 when the ring is empty.
//
// Uses binary search to find the first virtual node whose hash is >= key.
// If no such node exists (key > all nodes), wraps around to the first node.
func (r *Ring) Locate(key uint64) int {
	if len(r.nodes) == 0 {
		return -1
	}

	idx, found := slices.BinarySearchFunc(r.nodes, key, func(node virtualNode, t uint64) int {
		if node.hash < t {
			return -1
		}
		if node.hash > t {
			return 1
		}

		return 0
	})

	if !found && idx >= len(r.nodes) {
		idx = 0
	}

	return r.nodes[idx].shardIdx
}

// Shards returns the list of unique shards on the ring.
func (r *Ring) Shards() []string {
	// Return a copy to avoid external mutation
	return append([]string(nil), r.shards...)
}

// Size returns the total number of virtual nodes on the ring.
func (r *Ring) Size() int {
	return len(r.nodes)
}

// addShard adds virtual nodes for a shard to the ring.
func (r *Ring) addShard(shardID string, shardIdx int, virtualNodes int) {
	for i := range virtualNodes {
		// Fold shardID, then vnode index using the previous hash as seed.
		// Avoids building a concatenated string per node and keeps node
		// placement stable across processes.
		var h uint64
		if r.seed != 0 {
			h = xxh3.HashStringSeed(shardID, r.seed)
		} else {
			h = xxh3.HashString(shardID)
		}

		var ib [8]byte
		binary.LittleEndian.PutUint64(ib[:], uint64(i)) //nolint:gosec
		h = xxh3.HashSeed(ib[:], h)

		r.nodes = append(r.nodes, virtualNode{
			hash:     h,
			shardIdx: shardIdx,
		})
	}
}
