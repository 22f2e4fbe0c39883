package types

import "context"

// Hooks defines callbacks for Router lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// so they never block the rebalance loop. Hooks receive the router's
// lifecycle context, which is cancelled during shutdown.
//
// Hook execution behavior:
//   - Hooks run concurrently and may not complete before Stop() returns
//   - Hook errors are logged but never fail router operations
//
// Implementations should complete quickly, respect context cancellation, and
// be idempotent (a hook may fire more than once for the same event).
type Hooks struct {
	// OnAssignmentChanged is called after a rebalance commits a new
	// assignment version, with the delta of moved targets.
	OnAssignmentChanged func(ctx context.Context, delta AssignmentDelta) error

	// OnTargetsExpired is called when the registry removes targets that
	// exceeded the absence timeout.
	OnTargetsExpired func(ctx context.Context, expired []Target) error

	// OnError is called when a recoverable error occurs, such as an empty
	// shard set or an exhausted computation retry.
	OnError func(ctx context.Context, err error) error
}
