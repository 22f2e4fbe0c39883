package hash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func TestRing_Locate(t *testing.T) {
	t.Run("empty ring returns -1", func(t *testing.T) {
		ring := NewRing(nil, 150, 0)

		require.Equal(t, -1, ring.Locate(42))
		require.Equal(t, 0, ring.Size())
	})

	t.Run("single shard owns everything", func(t *testing.T) {
		ring := NewRing([]string{"shard-a"}, 150, 0)

		for i := range 100 {
			require.Equal(t, 0, ring.Locate(xxh3.HashString(fmt.Sprintf("key-%d", i))))
		}
	})

	t.Run("is deterministic across instances", func(t *testing.T) {
		shards := []string{"shard-a", "shard-b", "shard-c"}
		r1 := NewRing(shards, 150, 7)
		r2 := NewRing(shards, 150, 7)

		for i := range 1000 {
			key := xxh3.HashString(fmt.Sprintf("key-%d", i))
			require.Equal(t, r1.Locate(key), r2.Locate(key))
		}
	})

	t.Run("deduplicates shards", func(t *testing.T) {
		ring := NewRing([]string{"a", "b", "a"}, 10, 0)

		require.Equal(t, []string{"a", "b"}, ring.Shards())
		require.Equal(t, 20, ring.Size())
	})
}

func TestRing_Distribution(t *testing.T) {
	shards := []string{"shard-a", "shard-b", "shard-c", "shard-d"}
	ring := NewRing(shards, 150, 0)

	counts := make([]int, len(shards))
	const population = 10000
	for i := range population {
		counts[ring.Locate(xxh3.HashString(fmt.Sprintf("target-%d", i)))]++
	}

	// Near-uniform, not exact: bound the max/min bucket ratio.
	minCount, maxCount := counts[0], counts[0]
	for _, c := range counts[1:] {
		minCount = min(minCount, c)
		maxCount = max(maxCount, c)
	}

	require.Positive(t, minCount, "every shard should own some keys")
	require.Less(t, float64(maxCount)/float64(minCount), 1.6,
		"bucket skew too high: counts=%v", counts)
}

func TestRing_MinimalMovement(t *testing.T) {
	const population = 1000
	before := NewRing([]string{"a", "b", "c"}, 150, 0)
	after := NewRing([]string{"a", "b", "c", "d"}, 150, 0)

	moved := 0
	for i := range population {
		key := xxh3.HashString(fmt.Sprintf("target-%d", i))
		if before.Locate(key) != after.Locate(key) {
			moved++
		}
	}

	// Expected ~1/4 of keys move to the new shard; allow generous slack.
	require.Less(t, moved, population*40/100, "ring moved %d of %d keys", moved, population)
}

func TestJump(t *testing.T) {
	t.Run("invalid bucket count returns -1", func(t *testing.T) {
		require.Equal(t, -1, Jump(123, 0))
		require.Equal(t, -1, Jump(123, -1))
	})

	t.Run("is deterministic", func(t *testing.T) {
		for i := range 100 {
			key := xxh3.HashString(fmt.Sprintf("key-%d", i))
			require.Equal(t, Jump(key, 8), Jump(key, 8))
		}
	})

	t.Run("stays in range", func(t *testing.T) {
		for i := range 1000 {
			b := Jump(uint64(i)*2654435761, 7)
			require.GreaterOrEqual(t, b, 0)
			require.Less(t, b, 7)
		}
	})

	t.Run("keys only move to the new bucket on growth", func(t *testing.T) {
		const population = 2000
		moved := 0
		for i := range population {
			key := xxh3.HashString(fmt.Sprintf("target-%d", i))
			before := Jump(key, 3)
			after := Jump(key, 4)
			if before != after {
				moved++
				require.Equal(t, 3, after, "moved key must land on the new bucket")
			}
		}

		// Expected population/4 moves, bounded with slack.
		require.Less(t, moved, population*35/100)
		require.Positive(t, moved)
	})
}
