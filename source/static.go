package source

import (
	"context"
	"sync"

	"github.com/metricfed/shardroute/types"
)

// Static implements a target source backed by a fixed list of targets.
type Static struct {
	mu      sync.RWMutex
	targets []types.Target
}

var _ types.TargetSource = (*Static)(nil)

// NewStatic creates a new static target source.
//
// The source returns whatever list it was last given. Useful for testing
// and for deployments where the scrape targets are known at startup.
//
// Parameters:
//   - targets: Initial list of targets (may be nil)
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic([]types.Target{
//	    {ID: "node/10.0.0.1:9100", Labels: types.NewLabels(map[string]string{
//	        "job": "node", "instance": "10.0.0.1:9100",
//	    })},
//	})
//	router, err := shardroute.NewRouter(&cfg, src)
//	if err != nil { /* handle */ }
func NewStatic(targets []types.Target) *Static {
	return &Static{
		targets: targets,
	}
}

// ListTargets returns the current list of targets.
//
// Returns:
//   - []types.Target: Copy of the current list
//   - error: Always nil (never fails)
func (s *Static) ListTargets(_ context.Context) ([]types.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.Target, len(s.targets))
	copy(result, s.targets)

	return result, nil
}

// Update replaces the target list.
//
// This lets the static source simulate service-discovery churn, which is
// useful for testing refresh and reconciliation scenarios.
//
// Parameters:
//   - targets: New list of targets
func (s *Static) Update(targets []types.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.targets = make([]types.Target, len(targets))
	copy(s.targets, targets)
}
