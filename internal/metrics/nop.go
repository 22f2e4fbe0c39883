// Package metrics provides MetricsCollector implementations: a Prometheus
// backed collector and a no-op collector for tests and metric-less setups.
package metrics

import "github.com/metricfed/shardroute/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RegistryMetrics implementation

// RecordTargetCount discards the target count gauge.
func (n *NopMetrics) RecordTargetCount(_ /* count */ int) {
	// No-op
}

// RecordTargetExpired discards the expired target counter.
func (n *NopMetrics) RecordTargetExpired(_ /* count */ int) {
	// No-op
}

// RecordInvalidTarget discards the invalid target counter.
func (n *NopMetrics) RecordInvalidTarget() {
	// No-op
}

// RebalanceMetrics implementation

// RecordRebalanceDuration discards the rebalance duration metric.
func (n *NopMetrics) RecordRebalanceDuration(_ /* duration */ float64, _ /* trigger */ string) {
	// No-op
}

// RecordRebalanceAttempt discards the rebalance attempt counter.
func (n *NopMetrics) RecordRebalanceAttempt(_ /* trigger */ string, _ /* success */ bool) {
	// No-op
}

// RecordMoves discards the moved target counter.
func (n *NopMetrics) RecordMoves(_ /* count */ int) {
	// No-op
}

// RecordShardCount discards the shard count gauge.
func (n *NopMetrics) RecordShardCount(_ /* count */ int) {
	// No-op
}

// RecordRetainedAssignment discards the fail-closed event counter.
func (n *NopMetrics) RecordRetainedAssignment(_ /* reason */ string) {
	// No-op
}

// PublisherMetrics implementation

// RecordAssignmentVersion discards the assignment version gauge.
func (n *NopMetrics) RecordAssignmentVersion(_ /* version */ int64) {
	// No-op
}

// RecordSubscriberCount discards the subscriber count gauge.
func (n *NopMetrics) RecordSubscriberCount(_ /* count */ int) {
	// No-op
}

// RecordSubscriberLagged discards the lagged subscriber counter.
func (n *NopMetrics) RecordSubscriberLagged() {
	// No-op
}
