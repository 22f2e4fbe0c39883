package types

import "errors"

// Sentinel errors for the shardroute library.
//
// These errors provide type-safe error checking using errors.Is() and
// errors.As(). All components use these sentinels for known error conditions
// and wrap external errors with context using fmt.Errorf("...: %w", err).

// Router errors - Public API errors returned by the Router component.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTargetSourceRequired is returned when the target source is nil.
	ErrTargetSourceRequired = errors.New("target source is required")

	// ErrAlreadyStarted is returned when Start is called on a running router.
	ErrAlreadyStarted = errors.New("router already started")

	// ErrNotStarted is returned when operations require a started router.
	ErrNotStarted = errors.New("router not started")
)

// Ingestion errors - rejected at the registry without affecting assignments.
var (
	// ErrInvalidLabelSet is returned when a target carries duplicate label
	// names, an empty label name, or an empty identifier.
	ErrInvalidLabelSet = errors.New("invalid label set")
)

// Rebalance errors - surfaced by the rebalancer; the previous assignment is
// always retained when these occur.
var (
	// ErrEmptyShardSet is returned when a rebalance is attempted against a
	// shard set with no members. Shard loss never defaults to "unassigned".
	ErrEmptyShardSet = errors.New("empty shard set")

	// ErrRouterComputation indicates a transient strategy failure. The
	// rebalancer retries with backoff before falling back to the retained
	// assignment.
	ErrRouterComputation = errors.New("router computation failed")
)

// Publisher errors - Internal assignment publishing component errors.
var (
	// ErrPublishFailed is returned when publishing an assignment snapshot to
	// an external sink fails.
	ErrPublishFailed = errors.New("failed to publish assignment")
)
