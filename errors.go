package shardroute

import "github.com/metricfed/shardroute/types"

// Sentinel errors re-exported from the types subpackage. Check them with
// errors.Is; returned errors may carry additional wrapped context.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrTargetSourceRequired is returned when the target source is nil.
	ErrTargetSourceRequired = types.ErrTargetSourceRequired

	// ErrAlreadyStarted is returned when Start is called on a running router.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when operations require a started router.
	ErrNotStarted = types.ErrNotStarted

	// ErrInvalidLabelSet is returned when a target carries duplicate label
	// names, an empty label name, or an empty identifier.
	ErrInvalidLabelSet = types.ErrInvalidLabelSet

	// ErrEmptyShardSet surfaces when rebalancing is attempted against zero
	// shards; the previous assignment is retained.
	ErrEmptyShardSet = types.ErrEmptyShardSet

	// ErrRouterComputation surfaces when the sharding strategy keeps failing
	// after retries; the previous assignment is retained.
	ErrRouterComputation = types.ErrRouterComputation

	// ErrPublishFailed wraps assignment sink delivery failures.
	ErrPublishFailed = types.ErrPublishFailed
)
