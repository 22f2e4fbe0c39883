package types

import "context"

// AssignmentSink receives every committed assignment for delivery to an
// external system, such as a NATS JetStream KV bucket that scrape
// orchestrators watch.
//
// Sinks are driven by a router goroutine after each commit. Delivery is
// at-least-once: a sink may see the same version twice after transient
// failures and must publish idempotently by version.
type AssignmentSink interface {
	// Publish delivers a committed snapshot and the delta that produced it.
	//
	// Parameters:
	//   - ctx: Cancelled when the router shuts down
	//   - assignment: Full committed snapshot
	//   - delta: Targets whose shard changed in this commit
	//
	// Returns:
	//   - error: Delivery failure (logged and retried on the next commit)
	Publish(ctx context.Context, assignment Assignment, delta AssignmentDelta) error
}
