package shardroute

import (
	"fmt"
	"time"
)

// Sharding algorithm names accepted by Config.ShardingAlgorithm.
const (
	// AlgorithmModulo selects hashmod bucketing (key % shardCount). Exact
	// parity with static sharding relabel configs, but every membership
	// change remaps most targets.
	AlgorithmModulo = "modulo"

	// AlgorithmConsistentRing selects a virtual-node consistent hash ring.
	// Recommended default: minimal movement on both shard addition and
	// removal.
	AlgorithmConsistentRing = "consistent-ring"

	// AlgorithmJumpHash selects jump consistent hashing. Minimal state and
	// fastest lookup; requires an append-only shard list.
	AlgorithmJumpHash = "jump-hash"
)

// Config is the configuration for the Router.
//
// All duration fields accept standard Go duration strings like "30s", "5m"
// when unmarshalled from YAML.
type Config struct {
	// LabelSelector names the label keys that form a target's routing key.
	// An empty selector folds every label, meaning any label change moves
	// the target; selecting a stable subset (e.g. ["job", "instance"]) keeps
	// routing insensitive to volatile metadata labels.
	LabelSelector []string `yaml:"labelSelector"`

	// TargetTTL is the absence timeout: targets unseen for longer are
	// expired by the registry sweep. Negative disables expiry.
	//
	// Default: 5 minutes
	TargetTTL time.Duration `yaml:"targetTtl"`

	// RebalanceDebounce is the coalescing window for rebalance triggers.
	// Bursty discovery updates within the window collapse into a single
	// recomputation.
	//
	// Default: 250ms
	RebalanceDebounce time.Duration `yaml:"rebalanceDebounce"`

	// ShardingAlgorithm selects the routing policy:
	// "modulo", "consistent-ring" or "jump-hash".
	//
	// Default: "consistent-ring"
	ShardingAlgorithm string `yaml:"shardingAlgorithm"`

	// VirtualNodes is the number of virtual nodes per shard for the
	// consistent-ring algorithm. Ignored by the other algorithms.
	//
	// Default: 150
	VirtualNodes int `yaml:"virtualNodes"`

	// HashSeed is the base seed for routing key derivation and ring
	// placement. All router instances that must agree on assignments have
	// to share the same seed.
	HashSeed uint64 `yaml:"hashSeed"`

	// RetryAttempts bounds strategy-error retries within one rebalance
	// before failing closed.
	//
	// Default: 3
	RetryAttempts int `yaml:"retryAttempts"`

	// RetryBaseBackoff is the initial retry delay; subsequent delays grow
	// with jitter up to RetryMaxBackoff.
	//
	// Default: 50ms / 1s
	RetryBaseBackoff time.Duration `yaml:"retryBaseBackoff"`
	RetryMaxBackoff  time.Duration `yaml:"retryMaxBackoff"`
}

// Validate checks the configuration for consistency.
//
// Returns:
//   - error: ErrInvalidConfig-wrapped description of the first problem found
func (c *Config) Validate() error {
	switch c.ShardingAlgorithm {
	case "", AlgorithmModulo, AlgorithmConsistentRing, AlgorithmJumpHash:
	default:
		return fmt.Errorf("%w: unknown sharding algorithm %q", ErrInvalidConfig, c.ShardingAlgorithm)
	}

	if c.RebalanceDebounce < 0 {
		return fmt.Errorf("%w: rebalanceDebounce must not be negative", ErrInvalidConfig)
	}
	if c.VirtualNodes < 0 {
		return fmt.Errorf("%w: virtualNodes must not be negative", ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retryAttempts must not be negative", ErrInvalidConfig)
	}
	for _, name := range c.LabelSelector {
		if name == "" {
			return fmt.Errorf("%w: labelSelector entries must not be empty", ErrInvalidConfig)
		}
	}

	return nil
}

// SetDefaults fills zero-valued fields with production defaults.
func (c *Config) SetDefaults() {
	if c.TargetTTL == 0 {
		c.TargetTTL = 5 * time.Minute
	}
	if c.RebalanceDebounce == 0 {
		c.RebalanceDebounce = 250 * time.Millisecond
	}
	if c.ShardingAlgorithm == "" {
		c.ShardingAlgorithm = AlgorithmConsistentRing
	}
	if c.VirtualNodes == 0 {
		c.VirtualNodes = 150
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseBackoff == 0 {
		c.RetryBaseBackoff = 50 * time.Millisecond
	}
	if c.RetryMaxBackoff == 0 {
		c.RetryMaxBackoff = time.Second
	}
}
