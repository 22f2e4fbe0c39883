package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/metricfed/shardroute/internal/kvutil"
	"github.com/metricfed/shardroute/internal/logging"
	"github.com/metricfed/shardroute/types"
)

// ShardAssignment is the per-shard document stored in the KV bucket.
//
// Each shard gets its own key so an orchestrator managing one shard can
// watch a single key instead of diffing the whole routing table.
type ShardAssignment struct {
	// Version is the assignment commit sequence this document belongs to.
	Version int64 `json:"version"`

	// ShardSetVersion is the shard membership version the assignment was
	// computed against.
	ShardSetVersion int64 `json:"shardSetVersion"`

	// Shard is the owning shard ID.
	Shard string `json:"shard"`

	// TargetIDs lists the targets routed to this shard, sorted.
	TargetIDs []string `json:"targetIds"`
}

// NATSKVConfig configures a JetStream KV assignment sink.
type NATSKVConfig struct {
	// KeyPrefix prefixes per-shard keys in the bucket, producing keys of
	// the form "<prefix>.<shardID>". Defaults to "assignment".
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix"`

	// DeltaSubject, when non-empty, receives every commit's delta as a
	// JSON-encoded types.AssignmentDelta. Requires Conn.
	DeltaSubject string `yaml:"deltaSubject" json:"deltaSubject"`

	// Conn publishes delta notifications. Only required with DeltaSubject.
	Conn *nats.Conn `yaml:"-" json:"-"`

	// Logger for sink events. Defaults to a slog-backed logger.
	Logger types.Logger `yaml:"-" json:"-"`
}

// NATSKV publishes committed assignments to a NATS JetStream KV bucket.
//
// Every commit is split into per-shard ShardAssignment documents keyed
// "<prefix>.<shardID>". Keys for shards that no longer own any target are
// deleted in the same pass, so the bucket always mirrors exactly the latest
// committed routing table. Delivery is idempotent by version: a snapshot the
// bucket has already absorbed is skipped, and delta notifications keep their
// own high-water mark so a delta paired with an already-written snapshot is
// still mirrored.
type NATSKV struct {
	kv           jetstream.KeyValue
	conn         *nats.Conn
	keyPrefix    string
	deltaSubject string
	logger       types.Logger

	mu            sync.Mutex
	lastPublished int64
	lastDelta     int64
}

var _ types.AssignmentSink = (*NATSKV)(nil)

// NewNATSKV creates a JetStream KV assignment sink.
//
// Parameters:
//   - kv: KV bucket for assignment documents
//   - cfg: Sink configuration (nil uses defaults)
//
// Returns:
//   - *NATSKV: Initialized sink
//   - error: ErrInvalidConfig when kv is nil or DeltaSubject is set
//     without a connection
func NewNATSKV(kv jetstream.KeyValue, cfg *NATSKVConfig) (*NATSKV, error) {
	if kv == nil {
		return nil, fmt.Errorf("%w: kv bucket is required", types.ErrInvalidConfig)
	}

	if cfg == nil {
		cfg = &NATSKVConfig{}
	}

	if cfg.DeltaSubject != "" && cfg.Conn == nil {
		return nil, fmt.Errorf("%w: delta subject requires a nats connection", types.ErrInvalidConfig)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "assignment"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewSlogDefault()
	}

	return &NATSKV{
		kv:           kv,
		conn:         cfg.Conn,
		keyPrefix:    prefix + ".",
		deltaSubject: cfg.DeltaSubject,
		logger:       logger,
	}, nil
}

// EnsureNATSKV creates or opens the named KV bucket and builds a sink over
// it. Bucket creation tolerates races with other router processes.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - bucket: KV bucket name
//   - cfg: Sink configuration (nil uses defaults)
//
// Returns:
//   - *NATSKV: Initialized sink
//   - error: Bucket creation or configuration failure
func EnsureNATSKV(ctx context.Context, js jetstream.JetStream, bucket string, cfg *NATSKVConfig) (*NATSKV, error) {
	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: bucket}, 3)
	if err != nil {
		return nil, err
	}

	return NewNATSKV(kv, cfg)
}

// DiscoverHighestVersion scans the bucket for the highest published
// assignment version.
//
// Call this once before attaching the sink to a router so a restarted
// publisher never rewrites the bucket with a version orchestrators have
// already acted on.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - int64: Highest version found (0 when the bucket is empty)
//   - error: KV access failure
func (s *NATSKV) DiscoverHighestVersion(ctx context.Context) (int64, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "no keys found") {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to list KV keys: %w", err)
	}

	var highest int64
	for _, key := range keys {
		if !strings.HasPrefix(key, s.keyPrefix) {
			continue
		}

		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			s.logger.Debug("failed to read assignment key", "key", key, "error", err)
			continue
		}

		var doc ShardAssignment
		if err := json.Unmarshal(entry.Value(), &doc); err != nil {
			s.logger.Debug("skipping malformed assignment document", "key", key, "error", err)
			continue
		}

		if doc.Version > highest {
			highest = doc.Version
		}
	}

	s.mu.Lock()
	s.lastPublished = highest
	// Deltas at or below the discovered version were mirrored by the
	// previous incarnation.
	s.lastDelta = highest
	s.mu.Unlock()

	if highest > 0 {
		s.logger.Info("discovered existing assignments", "highest_version", highest)
	}

	return highest, nil
}

// Publish writes the committed assignment to the KV bucket as per-shard
// documents and mirrors the delta to the notification subject.
//
// Implements types.AssignmentSink.
func (s *NATSKV) Publish(ctx context.Context, assignment types.Assignment, delta types.AssignmentDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The snapshot and the delta are deduplicated independently: a caller
	// may pair an older delta with a newer snapshot, and mirroring that
	// delta must not be suppressed by the snapshot already being in the
	// bucket (or vice versa).
	publishKV := assignment.Version > s.lastPublished
	publishDelta := s.deltaSubject != "" && delta.Version > s.lastDelta

	if !publishKV && !publishDelta {
		s.logger.Debug("skipping already-published assignment",
			"version", assignment.Version, "last_published", s.lastPublished)

		return nil
	}

	byShard := make(map[string][]string)
	for targetID, shard := range assignment.Targets {
		byShard[shard] = append(byShard[shard], targetID)
	}

	if publishKV {
		for shard, targetIDs := range byShard {
			slices.Sort(targetIDs)
			doc := ShardAssignment{
				Version:         assignment.Version,
				ShardSetVersion: assignment.ShardSetVersion,
				Shard:           shard,
				TargetIDs:       targetIDs,
			}

			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("%w: failed to marshal shard assignment: %w", types.ErrPublishFailed, err)
			}

			if _, err := s.kv.Put(ctx, s.keyPrefix+shard, data); err != nil {
				return fmt.Errorf("%w: failed to put shard assignment %s: %w", types.ErrPublishFailed, shard, err)
			}
		}

		if err := s.cleanupStaleShards(ctx, byShard); err != nil {
			// Best effort: a leftover key still carries an older version, which
			// watchers recognize as stale.
			s.logger.Warn("stale shard cleanup failed", "error", err)
		}

		s.lastPublished = assignment.Version
	}

	if publishDelta {
		data, err := json.Marshal(delta)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal delta: %w", types.ErrPublishFailed, err)
		}

		if err := s.conn.Publish(s.deltaSubject, data); err != nil {
			return fmt.Errorf("%w: failed to publish delta: %w", types.ErrPublishFailed, err)
		}

		s.lastDelta = delta.Version
	}

	s.logger.Info("assignment published",
		"version", assignment.Version,
		"delta_version", delta.Version,
		"shards", len(byShard),
		"targets", len(assignment.Targets),
		"moves", len(delta.Moves))

	return nil
}

// LastPublishedVersion returns the version of the last commit the sink
// delivered (or discovered), 0 when none.
func (s *NATSKV) LastPublishedVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastPublished
}

// cleanupStaleShards deletes keys for shards absent from the latest commit.
func (s *NATSKV) cleanupStaleShards(ctx context.Context, active map[string][]string) error {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "no keys found") {
			return nil
		}

		return fmt.Errorf("failed to list keys: %w", err)
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, s.keyPrefix) {
			continue
		}

		shard := strings.TrimPrefix(key, s.keyPrefix)
		if _, ok := active[shard]; ok {
			continue
		}

		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete stale shard assignment", "key", key, "error", err)
			continue
		}

		s.logger.Debug("deleted stale shard assignment", "key", key)
	}

	return nil
}
