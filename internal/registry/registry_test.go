package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/metricfed/shardroute/internal/logging"
	"github.com/metricfed/shardroute/internal/metrics"
	"github.com/metricfed/shardroute/types"
)

func newTestRegistry(t *testing.T, ttl time.Duration, now func() time.Time) *Registry {
	t.Helper()

	return New(Config{
		TTL:     ttl,
		Now:     now,
		Logger:  logging.NewSlogDefault(),
		Metrics: metrics.NewNop(),
	})
}

func target(id string, labels map[string]string) types.Target {
	return types.Target{ID: id, Labels: types.NewLabels(labels)}
}

func drain(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestRegistry_Upsert(t *testing.T) {
	t.Run("inserts new target and notifies", func(t *testing.T) {
		reg := newTestRegistry(t, time.Minute, nil)

		changed, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))

		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, 1, reg.Len())
		require.True(t, drain(reg.Changes()))
	})

	t.Run("refresh with identical labels is idempotent", func(t *testing.T) {
		reg := newTestRegistry(t, time.Minute, nil)

		_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
		require.NoError(t, err)
		drain(reg.Changes())

		changed, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
		require.NoError(t, err)
		require.False(t, changed)
		require.False(t, drain(reg.Changes()), "no notification for identical label set")
	})

	t.Run("label change notifies again", func(t *testing.T) {
		reg := newTestRegistry(t, time.Minute, nil)

		_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
		require.NoError(t, err)
		drain(reg.Changes())

		changed, err := reg.Upsert(target("t1", map[string]string{"job": "cadvisor"}))
		require.NoError(t, err)
		require.True(t, changed)
		require.True(t, drain(reg.Changes()))
	})

	t.Run("rejects invalid label set without mutating state", func(t *testing.T) {
		reg := newTestRegistry(t, time.Minute, nil)

		bad := types.Target{ID: "t1", Labels: types.Labels{
			{Name: "job", Value: "a"},
			{Name: "job", Value: "b"},
		}}
		_, err := reg.Upsert(bad)

		require.ErrorIs(t, err, types.ErrInvalidLabelSet)
		require.Equal(t, 0, reg.Len())
		require.False(t, drain(reg.Changes()))
	})
}

func TestRegistry_Remove(t *testing.T) {
	reg := newTestRegistry(t, time.Minute, nil)

	_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
	require.NoError(t, err)
	drain(reg.Changes())

	require.True(t, reg.Remove("t1"))
	require.Equal(t, 0, reg.Len())
	require.True(t, drain(reg.Changes()))

	require.False(t, reg.Remove("t1"), "second remove is a no-op")
	require.False(t, drain(reg.Changes()))
}

func TestRegistry_Expire(t *testing.T) {
	t.Run("removes targets past the TTL", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		reg := newTestRegistry(t, 30*time.Second, clock)

		_, err := reg.Upsert(target("stale", map[string]string{"job": "node"}))
		require.NoError(t, err)

		now = now.Add(10 * time.Second)
		_, err = reg.Upsert(target("fresh", map[string]string{"job": "node"}))
		require.NoError(t, err)
		drain(reg.Changes())

		expired := reg.Expire(now.Add(25 * time.Second))

		require.Len(t, expired, 1)
		require.Equal(t, "stale", expired[0].ID)
		require.Equal(t, 1, reg.Len())
		require.True(t, drain(reg.Changes()))
	})

	t.Run("zero TTL disables expiry", func(t *testing.T) {
		reg := newTestRegistry(t, 0, nil)

		_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
		require.NoError(t, err)

		require.Nil(t, reg.Expire(time.Now().Add(time.Hour)))
		require.Equal(t, 1, reg.Len())
	})

	t.Run("no notification when nothing expires", func(t *testing.T) {
		reg := newTestRegistry(t, time.Minute, nil)

		_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
		require.NoError(t, err)
		drain(reg.Changes())

		require.Nil(t, reg.Expire(time.Now()))
		require.False(t, drain(reg.Changes()))
	})
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := newTestRegistry(t, time.Minute, nil)

	_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
	require.NoError(t, err)
	_, err = reg.Upsert(target("t2", map[string]string{"job": "cadvisor"}))
	require.NoError(t, err)

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 2)

	// Mutating after the snapshot must not affect it.
	reg.Remove("t1")
	require.Len(t, snapshot, 2)
}

func TestRegistry_SweepLoop(t *testing.T) {
	reg := newTestRegistry(t, 40*time.Millisecond, nil)

	var expiredCh = make(chan []types.Target, 1)
	reg.onExpired = func(expired []types.Target) {
		select {
		case expiredCh <- expired:
		default:
		}
	}

	_, err := reg.Upsert(target("t1", map[string]string{"job": "node"}))
	require.NoError(t, err)

	require.NoError(t, reg.Start())
	require.ErrorIs(t, reg.Start(), types.ErrAlreadyStarted)
	defer reg.Stop()

	select {
	case expired := <-expiredCh:
		require.Len(t, expired, 1)
		require.Equal(t, "t1", expired[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep loop did not expire the target in time")
	}

	require.Equal(t, 0, reg.Len())
}
