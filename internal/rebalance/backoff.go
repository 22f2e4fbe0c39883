package rebalance

import (
	rand "math/rand/v2"
	"time"
)

// jitterBackoff computes the next retry delay using jittered exponential
// growth with a cap ("Full Jitter" variant).
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
//
// Behavior:
//   - If prev <= 0, start from base
//   - Multiplier < 1.0 falls back to 1.0 (no growth)
//   - Cap <= base returns cap
func jitterBackoff(prev, base time.Duration, mult float64, capDur time.Duration) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur > 0 && capDur < base {
		return capDur
	}

	if prev <= 0 {
		if capDur > 0 && base > capDur {
			return capDur
		}

		return base
	}

	maxDuration := time.Duration(float64(prev)*mult) - base
	if maxDuration <= 0 {
		maxDuration = base
	}

	next := base + time.Duration(rand.Int64N(int64(maxDuration))) //nolint:gosec // non-crypto backoff jitter
	if capDur > 0 && next > capDur {
		return capDur
	}

	return next
}
