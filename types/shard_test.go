package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignment_Clone(t *testing.T) {
	original := Assignment{
		Version: 3,
		Targets: map[string]string{"t1": "shard-a", "t2": "shard-b"},
	}

	clone := original.Clone()
	clone.Targets["t1"] = "shard-c"

	require.Equal(t, "shard-a", original.Targets["t1"], "clone must not alias the original map")
	require.Equal(t, int64(3), clone.Version)
}

func TestShardSet_Clone(t *testing.T) {
	original := ShardSet{Shards: []string{"a", "b"}, Version: 7}

	clone := original.Clone()
	clone.Shards[0] = "mutated"

	require.Equal(t, "a", original.Shards[0])
}

func TestAssignmentDelta_Empty(t *testing.T) {
	require.True(t, AssignmentDelta{Version: 1}.Empty())
	require.False(t, AssignmentDelta{Version: 1, Moves: []Move{{TargetID: "t1", To: "a"}}}.Empty())
}
