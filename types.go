package shardroute

import "github.com/metricfed/shardroute/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types and
// interfaces via type aliases. Internal packages depend on the types
// subpackage directly, which avoids import cycles while still offering the
// convenient shardroute.Target, shardroute.Assignment, etc. for users.
type (
	Label           = types.Label
	Labels          = types.Labels
	Target          = types.Target
	ShardSet        = types.ShardSet
	Assignment      = types.Assignment
	AssignmentDelta = types.AssignmentDelta
	Move            = types.Move
)

// Re-export interfaces from the types subpackage for convenience.
type (
	ShardingStrategy = types.ShardingStrategy
	TargetSource     = types.TargetSource
	AssignmentSink   = types.AssignmentSink
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)
