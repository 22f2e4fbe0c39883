package types

import "slices"

// ShardSet is the ordered shard membership the router assigns targets to.
//
// The version increases monotonically on every membership change and tags
// every assignment computed against this membership.
type ShardSet struct {
	// Shards holds the shard identifiers, deduplicated, in caller order.
	Shards []string `json:"shards"`

	// Version is bumped by the router on each membership change.
	Version int64 `json:"version"`
}

// Clone returns a deep copy safe for concurrent readers.
func (s ShardSet) Clone() ShardSet {
	return ShardSet{
		Shards:  slices.Clone(s.Shards),
		Version: s.Version,
	}
}

// Assignment is the committed mapping from target ID to shard ID.
//
// Invariant: after a rebalance commits, every live target has exactly one
// entry and ShardSetVersion equals the current ShardSet version. Version is
// the commit sequence: it increases on every commit, including target-only
// rebalances that leave the shard membership untouched, so deltas stay
// idempotent by target ID and version.
type Assignment struct {
	// Version is a monotonically increasing commit sequence number.
	Version int64 `json:"version"`

	// ShardSetVersion is the ShardSet version this assignment was computed
	// against.
	ShardSetVersion int64 `json:"shardSetVersion"`

	// Targets maps target ID to owning shard ID.
	Targets map[string]string `json:"targets"`
}

// Clone returns a deep copy safe for concurrent readers.
func (a Assignment) Clone() Assignment {
	targets := make(map[string]string, len(a.Targets))
	for id, shard := range a.Targets {
		targets[id] = shard
	}

	return Assignment{Version: a.Version, ShardSetVersion: a.ShardSetVersion, Targets: targets}
}

// Shard returns the owning shard for a target ID, or "" when unassigned.
func (a Assignment) Shard(targetID string) string {
	return a.Targets[targetID]
}

// Move records a single target changing shards within a delta.
type Move struct {
	// TargetID identifies the moved target.
	TargetID string `json:"targetId"`

	// From is the previous shard ID ("" on first assignment).
	From string `json:"from,omitempty"`

	// To is the new shard ID ("" when the target was removed or expired).
	To string `json:"to,omitempty"`
}

// AssignmentDelta carries only the targets whose shard changed in one
// rebalance, never a full re-emission. Consumers must treat deltas as
// idempotent by target ID and version: delivery is at-least-once.
type AssignmentDelta struct {
	// Version is the assignment version this delta commits.
	Version int64 `json:"version"`

	// ShardSetVersion tags the shard membership the delta was computed
	// against.
	ShardSetVersion int64 `json:"shardSetVersion"`

	// Moves lists the changed targets.
	Moves []Move `json:"moves"`
}

// Empty reports whether the delta carries no moves.
func (d AssignmentDelta) Empty() bool {
	return len(d.Moves) == 0
}
