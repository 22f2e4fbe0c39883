package types

import "context"

// TargetSource discovers and provides the current set of scrape targets.
//
// Implementations can query various collaborators:
//   - Static: fixed list for testing and bootstrap
//   - NATS: discovery notifications consumed from a subject
//   - Custom: any service-discovery integration
//
// The Router calls ListTargets during:
//   - Startup (initial discovery)
//   - RefreshTargets() (manual refresh)
type TargetSource interface {
	// ListTargets returns all currently known targets.
	//
	// Implementations should:
	//   - Return consistent results for the same backend state
	//   - Handle context cancellation gracefully
	//   - Return errors for transient failures (the caller retries)
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - []Target: Discovered targets
	//   - error: Discovery error (nil on success)
	ListTargets(ctx context.Context) ([]Target, error)
}
