package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/metricfed/shardroute/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Registry metrics
	targetCount    prometheus.Gauge
	targetsExpired prometheus.Counter
	invalidTargets prometheus.Counter

	// Rebalance metrics
	rebalanceDuration   *prometheus.HistogramVec
	rebalanceAttempts   *prometheus.CounterVec
	movedTargets        prometheus.Counter
	shardCount          prometheus.Gauge
	retainedAssignments *prometheus.CounterVec

	// Publisher metrics
	assignmentVersion prometheus.Gauge
	subscriberCount   prometheus.Gauge
	laggedSubscribers prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "shardroute" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "shardroute"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.targetCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "registry",
			Name:      "targets_current",
			Help:      "Current number of live targets in the registry.",
		})
		p.targetsExpired = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "registry",
			Name:      "targets_expired_total",
			Help:      "Total targets removed by the TTL sweep.",
		})
		p.invalidTargets = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "registry",
			Name:      "invalid_targets_total",
			Help:      "Total targets rejected at ingestion for invalid label sets.",
		})

		p.rebalanceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "rebalance",
			Name:      "duration_seconds",
			Help:      "Rebalance computation duration in seconds by trigger.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}, []string{"trigger"})
		p.rebalanceAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "rebalance",
			Name:      "attempts_total",
			Help:      "Total rebalance attempts by trigger and result.",
		}, []string{"trigger", "result"})
		p.movedTargets = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "rebalance",
			Name:      "moved_targets_total",
			Help:      "Total targets that changed shards across committed deltas.",
		})
		p.shardCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "rebalance",
			Name:      "shards_current",
			Help:      "Current shard membership size.",
		})
		p.retainedAssignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "rebalance",
			Name:      "retained_assignments_total",
			Help:      "Total fail-closed events keeping the previous assignment, by reason.",
		}, []string{"reason"})

		p.assignmentVersion = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "publisher",
			Name:      "assignment_version",
			Help:      "Latest committed assignment version.",
		})
		p.subscriberCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "publisher",
			Name:      "subscribers_current",
			Help:      "Current number of delta subscribers.",
		})
		p.laggedSubscribers = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "publisher",
			Name:      "lagged_subscribers_total",
			Help:      "Total slow-subscriber events resynced from a full snapshot.",
		})

		collectors := []prometheus.Collector{
			p.targetCount, p.targetsExpired, p.invalidTargets,
			p.rebalanceDuration, p.rebalanceAttempts, p.movedTargets,
			p.shardCount, p.retainedAssignments,
			p.assignmentVersion, p.subscriberCount, p.laggedSubscribers,
		}
		for _, c := range collectors {
			// AlreadyRegisteredError is tolerated so two collectors with the
			// same namespace can share a registry in tests.
			if err := p.reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

// RecordTargetCount sets the live target gauge.
func (p *PrometheusCollector) RecordTargetCount(count int) {
	p.ensureRegistered()
	p.targetCount.Set(float64(count))
}

// RecordTargetExpired counts targets removed by the TTL sweep.
func (p *PrometheusCollector) RecordTargetExpired(count int) {
	p.ensureRegistered()
	p.targetsExpired.Add(float64(count))
}

// RecordInvalidTarget counts a rejected target.
func (p *PrometheusCollector) RecordInvalidTarget() {
	p.ensureRegistered()
	p.invalidTargets.Inc()
}

// RecordRebalanceDuration observes a rebalance duration.
func (p *PrometheusCollector) RecordRebalanceDuration(duration float64, trigger string) {
	p.ensureRegistered()
	p.rebalanceDuration.WithLabelValues(trigger).Observe(duration)
}

// RecordRebalanceAttempt counts a rebalance attempt outcome.
func (p *PrometheusCollector) RecordRebalanceAttempt(trigger string, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.rebalanceAttempts.WithLabelValues(trigger, result).Inc()
}

// RecordMoves counts targets moved in a committed delta.
func (p *PrometheusCollector) RecordMoves(count int) {
	p.ensureRegistered()
	p.movedTargets.Add(float64(count))
}

// RecordShardCount sets the shard membership gauge.
func (p *PrometheusCollector) RecordShardCount(count int) {
	p.ensureRegistered()
	p.shardCount.Set(float64(count))
}

// RecordRetainedAssignment counts a fail-closed event.
func (p *PrometheusCollector) RecordRetainedAssignment(reason string) {
	p.ensureRegistered()
	p.retainedAssignments.WithLabelValues(reason).Inc()
}

// RecordAssignmentVersion sets the committed version gauge.
func (p *PrometheusCollector) RecordAssignmentVersion(version int64) {
	p.ensureRegistered()
	p.assignmentVersion.Set(float64(version))
}

// RecordSubscriberCount sets the subscriber gauge.
func (p *PrometheusCollector) RecordSubscriberCount(count int) {
	p.ensureRegistered()
	p.subscriberCount.Set(float64(count))
}

// RecordSubscriberLagged counts a slow-subscriber resync.
func (p *PrometheusCollector) RecordSubscriberLagged() {
	p.ensureRegistered()
	p.laggedSubscribers.Inc()
}
