package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/metricfed/shardroute/shardroutetest"
)

func TestEnsureBucket(t *testing.T) {
	_, nc := shardroutetest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	t.Run("creates new bucket", func(t *testing.T) {
		kv, err := EnsureBucket(ctx, js, jetstream.KeyValueConfig{
			Bucket:  "assignments",
			Storage: jetstream.MemoryStorage,
		}, 3)
		require.NoError(t, err)
		require.NotNil(t, kv)
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		kv, err := EnsureBucket(ctx, js, jetstream.KeyValueConfig{
			Bucket:  "assignments",
			Storage: jetstream.MemoryStorage,
		}, 3)
		require.NoError(t, err)
		require.NotNil(t, kv)
	})

	t.Run("concurrent creates on the same bucket", func(t *testing.T) {
		const workers = 5

		var wg sync.WaitGroup
		errs := make(chan error, workers)

		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := EnsureBucket(ctx, js, jetstream.KeyValueConfig{
					Bucket:  "assignments-concurrent",
					Storage: jetstream.MemoryStorage,
				}, 3)
				if err != nil {
					errs <- err
				}
			}()
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	})
}

func TestEnsureBucket_CancelledContext(t *testing.T) {
	_, nc := shardroutetest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "never"}, 3)
	require.Error(t, err)
}
