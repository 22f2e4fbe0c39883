package rebalance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitterBackoff(t *testing.T) {
	t.Run("starts from base", func(t *testing.T) {
		d := jitterBackoff(0, 50*time.Millisecond, 2.0, time.Second)
		require.Equal(t, 50*time.Millisecond, d)
	})

	t.Run("grows but never exceeds the cap", func(t *testing.T) {
		capDur := 200 * time.Millisecond
		prev := time.Duration(0)
		for range 10 {
			prev = jitterBackoff(prev, 50*time.Millisecond, 2.0, capDur)
			require.Positive(t, prev)
			require.LessOrEqual(t, prev, capDur)
		}
	})

	t.Run("cap below base returns cap", func(t *testing.T) {
		d := jitterBackoff(0, 100*time.Millisecond, 2.0, 10*time.Millisecond)
		require.Equal(t, 10*time.Millisecond, d)
	})

	t.Run("zero base falls back to default", func(t *testing.T) {
		d := jitterBackoff(0, 0, 2.0, time.Second)
		require.Equal(t, 50*time.Millisecond, d)
	})
}
