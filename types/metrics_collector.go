package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces so components
// can depend on just the slice they record.
type MetricsCollector interface {
	RegistryMetrics
	RebalanceMetrics
	PublisherMetrics
}

// RegistryMetrics defines metrics for target registry operations.
type RegistryMetrics interface {
	// RecordTargetCount sets the current live target count (gauge).
	RecordTargetCount(count int)

	// RecordTargetExpired records targets removed by the TTL sweep.
	RecordTargetExpired(count int)

	// RecordInvalidTarget records a target rejected at ingestion.
	RecordInvalidTarget()
}

// RebalanceMetrics defines metrics for rebalancer operations.
type RebalanceMetrics interface {
	// RecordRebalanceDuration records the time taken for a rebalance.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - trigger: Rebalance trigger ("targets", "shards", "refresh")
	RecordRebalanceDuration(duration float64, trigger string)

	// RecordRebalanceAttempt records a rebalance attempt outcome.
	//
	// Parameters:
	//   - trigger: Rebalance trigger
	//   - success: true when a snapshot committed, false when retained
	RecordRebalanceAttempt(trigger string, success bool)

	// RecordMoves records the number of targets that changed shards in a
	// committed delta.
	RecordMoves(count int)

	// RecordShardCount sets the current shard membership size (gauge).
	RecordShardCount(count int)

	// RecordRetainedAssignment records a fail-closed event where the
	// previous assignment was kept (empty shard set or exhausted retries).
	RecordRetainedAssignment(reason string)
}

// PublisherMetrics defines metrics for assignment publication.
type PublisherMetrics interface {
	// RecordAssignmentVersion sets the latest committed version (gauge).
	RecordAssignmentVersion(version int64)

	// RecordSubscriberCount sets the current subscriber count (gauge).
	RecordSubscriberCount(count int)

	// RecordSubscriberLagged records a slow subscriber that will be
	// resynced from a full snapshot on the next commit.
	RecordSubscriberLagged()
}
