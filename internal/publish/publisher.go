// Package publish holds the committed assignment snapshot and fans out
// assignment deltas to subscribers. It is the read side of the router:
// the rebalancer is the only writer.
package publish

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/metricfed/shardroute/types"
)

// Publisher exposes the latest committed assignment to external consumers.
//
// Reads are non-blocking: Current returns a copy of the committed snapshot,
// and Subscribe produces a restartable stream of deltas. Delivery is
// at-least-once; a slow subscriber is marked lagged and resynced from a full
// snapshot on the next commit instead of blocking the rebalance loop.
type Publisher struct {
	mu        sync.RWMutex
	committed types.Assignment

	subscribers *xsync.Map[uint64, *subscriber]
	nextSubID   atomic.Uint64

	logger  types.Logger
	metrics types.PublisherMetrics
}

// New creates a publisher with an empty committed assignment.
//
// Parameters:
//   - logger: Logger for fan-out events
//   - metrics: Metrics collector for publisher gauges
//
// Returns:
//   - *Publisher: A new publisher instance
func New(logger types.Logger, metrics types.PublisherMetrics) *Publisher {
	return &Publisher{
		committed:   types.Assignment{Targets: map[string]string{}},
		subscribers: xsync.NewMap[uint64, *subscriber](),
		logger:      logger,
		metrics:     metrics,
	}
}

// Current returns the latest committed assignment snapshot and its version.
//
// The returned assignment is a copy; callers may retain or mutate it freely.
//
// Returns:
//   - types.Assignment: Committed snapshot (empty map before first commit)
//   - int64: Committed version (0 before first commit)
func (p *Publisher) Current() (types.Assignment, int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.committed.Clone(), p.committed.Version
}

// Commit atomically replaces the committed snapshot and fans out the delta.
//
// No partial state is ever visible: readers observe either the previous
// snapshot or the new one. Lagged subscribers receive a synthetic full-state
// delta built from the new snapshot instead of the incremental delta, which
// restores their view after dropped events.
//
// Parameters:
//   - assignment: Fully computed assignment snapshot
//   - delta: Targets whose shard changed relative to the previous commit
func (p *Publisher) Commit(assignment types.Assignment, delta types.AssignmentDelta) {
	p.mu.Lock()
	p.committed = assignment.Clone()
	snapshot := p.committed
	p.mu.Unlock()

	p.metrics.RecordAssignmentVersion(assignment.Version)

	p.subscribers.Range(func(id uint64, sub *subscriber) bool {
		if sub.isLagged() {
			// Resync from the full snapshot; incremental deltas since the
			// drop are gone.
			if sub.trySend(snapshotDelta(snapshot)) {
				sub.setLagged(false)
				p.logger.Debug("subscriber resynced from snapshot", "subscriber_id", id, "version", snapshot.Version)
			}

			return true
		}

		if !sub.trySend(delta) {
			sub.setLagged(true)
			p.metrics.RecordSubscriberLagged()
			p.logger.Warn("subscriber lagging, will resync from snapshot", "subscriber_id", id, "version", delta.Version)
		}

		return true
	})
}

// Subscribe registers a new delta consumer.
//
// The first event on the returned channel is a synthetic full-state delta
// built from the current committed snapshot, so a consumer can start (or
// restart) at any time and converge without replaying history. Subsequent
// events are incremental deltas. The channel is closed when the returned
// cancel function is called or the publisher shuts down.
//
// Parameters:
//   - buffer: Channel buffer size (minimum 1, to hold the initial snapshot)
//
// Returns:
//   - <-chan types.AssignmentDelta: Delta stream
//   - func(): Cancel function; idempotent
func (p *Publisher) Subscribe(buffer int) (<-chan types.AssignmentDelta, func()) {
	if buffer < 1 {
		buffer = 1
	}

	sub := &subscriber{ch: make(chan types.AssignmentDelta, buffer)}
	id := p.nextSubID.Add(1)

	// Snapshot and registration must share one critical section: a commit
	// either lands before the snapshot (state included in the initial
	// delta) or finds the subscriber registered for its fan-out. Splitting
	// the two leaves a window where a commit is lost to the new subscriber.
	p.mu.Lock()
	initial := snapshotDelta(p.committed)
	// Buffer >= 1 guarantees this send succeeds on a fresh channel.
	sub.trySend(initial)
	p.subscribers.Store(id, sub)
	p.mu.Unlock()

	p.metrics.RecordSubscriberCount(p.subscribers.Size())

	cancel := func() {
		if _, ok := p.subscribers.LoadAndDelete(id); ok {
			sub.close()
			p.metrics.RecordSubscriberCount(p.subscribers.Size())
		}
	}

	return sub.ch, cancel
}

// Close terminates all subscriptions. Subsequent commits are still recorded
// in the snapshot but reach no subscribers.
func (p *Publisher) Close() {
	p.subscribers.Range(func(id uint64, sub *subscriber) bool {
		p.subscribers.Delete(id)
		sub.close()

		return true
	})
	p.metrics.RecordSubscriberCount(0)
}

// snapshotDelta converts a committed snapshot into a full-state delta with
// every target reported as a fresh placement. Moves are sorted by target ID
// for deterministic consumption.
func snapshotDelta(a types.Assignment) types.AssignmentDelta {
	moves := make([]types.Move, 0, len(a.Targets))
	for id, shard := range a.Targets {
		moves = append(moves, types.Move{TargetID: id, To: shard})
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].TargetID < moves[j].TargetID })

	return types.AssignmentDelta{Version: a.Version, ShardSetVersion: a.ShardSetVersion, Moves: moves}
}

// subscriber is a helper managing one delta subscription.
type subscriber struct {
	ch     chan types.AssignmentDelta
	mu     sync.Mutex
	closed bool
	lagged bool
}

// trySend delivers a delta without blocking. Returns false when the
// subscriber's buffer is full or the subscription is closed.
func (s *subscriber) trySend(delta types.AssignmentDelta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.ch <- delta:
		return true
	default:
		return false
	}
}

func (s *subscriber) isLagged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lagged
}

func (s *subscriber) setLagged(lagged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lagged = lagged
}

// close safely closes the subscriber's channel.
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
