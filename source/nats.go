package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/metricfed/shardroute/internal/logging"
	"github.com/metricfed/shardroute/types"
)

// Discovery notification operations.
const (
	// OpUpsert announces a new or updated target.
	OpUpsert = "upsert"
	// OpRemove announces that a target left the fleet.
	OpRemove = "remove"
)

// Notification is the wire format for discovery messages on the NATS
// discovery subject.
type Notification struct {
	// Op is the operation: "upsert" or "remove".
	Op string `json:"op"`

	// Target is the affected target. For "remove", only ID is required.
	Target types.Target `json:"target"`
}

// NATSConfig configures a NATS-backed target source.
type NATSConfig struct {
	// Subject is the NATS subject carrying discovery notifications.
	// Defaults to "shardroute.discovery".
	Subject string `yaml:"subject" json:"subject"`

	// Logger for source events. Defaults to a slog-backed logger.
	Logger types.Logger `yaml:"-" json:"-"`
}

// NATS implements a target source maintained from discovery notifications
// published to a NATS subject.
//
// The source keeps an in-memory view of the fleet: each "upsert"
// notification adds or refreshes a target, each "remove" drops it.
// ListTargets returns a snapshot of that view, so the router's refresh
// reconciliation observes exactly what discovery last announced.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  types.Logger

	mu      sync.RWMutex
	targets map[string]types.Target

	sub     *nats.Subscription
	started atomic.Bool
}

var _ types.TargetSource = (*NATS)(nil)

// DefaultDiscoverySubject is the subject used when NATSConfig.Subject is empty.
const DefaultDiscoverySubject = "shardroute.discovery"

// NewNATS creates a NATS-backed target source.
//
// Parameters:
//   - conn: Established NATS connection (caller owns its lifecycle)
//   - cfg: Source configuration (nil uses defaults)
//
// Returns:
//   - *NATS: Initialized source (call Start before use)
//   - error: ErrInvalidConfig when conn is nil
func NewNATS(conn *nats.Conn, cfg *NATSConfig) (*NATS, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nats connection is required", types.ErrInvalidConfig)
	}

	if cfg == nil {
		cfg = &NATSConfig{}
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultDiscoverySubject
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewSlogDefault()
	}

	return &NATS{
		conn:    conn,
		subject: subject,
		logger:  logger,
		targets: make(map[string]types.Target),
	}, nil
}

// Start subscribes to the discovery subject and begins maintaining the
// target view.
//
// Returns:
//   - error: ErrAlreadyStarted when already running, or a subscription error
func (s *NATS) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return types.ErrAlreadyStarted
	}

	sub, err := s.conn.Subscribe(s.subject, s.handleNotification)
	if err != nil {
		s.started.Store(false)

		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.sub = sub
	s.logger.Info("discovery source started", "subject", s.subject)

	return nil
}

// Stop unsubscribes from the discovery subject. The accumulated target view
// is retained so ListTargets keeps serving the last known state.
//
// Returns:
//   - error: ErrNotStarted when not running, or an unsubscribe error
func (s *NATS) Stop() error {
	if !s.started.CompareAndSwap(true, false) {
		return types.ErrNotStarted
	}

	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", s.subject, err)
	}

	s.sub = nil

	return nil
}

// ListTargets returns a snapshot of the targets discovery has announced.
//
// Returns:
//   - []types.Target: Current view (order unspecified)
//   - error: Always nil; the view is maintained asynchronously
func (s *NATS) ListTargets(_ context.Context) ([]types.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.Target, 0, len(s.targets))
	for _, target := range s.targets {
		result = append(result, target)
	}

	return result, nil
}

// Len returns the number of targets in the current view.
func (s *NATS) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.targets)
}

func (s *NATS) handleNotification(msg *nats.Msg) {
	var note Notification
	if err := json.Unmarshal(msg.Data, &note); err != nil {
		s.logger.Warn("ignoring malformed discovery notification",
			"subject", msg.Subject, "error", err)

		return
	}

	switch note.Op {
	case OpUpsert:
		target := note.Target
		if err := target.Validate(); err != nil {
			s.logger.Warn("ignoring invalid discovery target",
				"target_id", target.ID, "error", err)

			return
		}

		s.mu.Lock()
		s.targets[target.ID] = target
		s.mu.Unlock()
	case OpRemove:
		if note.Target.ID == "" {
			s.logger.Warn("ignoring discovery removal without target id")

			return
		}

		s.mu.Lock()
		delete(s.targets, note.Target.ID)
		s.mu.Unlock()
	default:
		s.logger.Warn("ignoring discovery notification with unknown op", "op", note.Op)
	}
}
