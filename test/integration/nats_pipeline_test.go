//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/metricfed/shardroute"
	"github.com/metricfed/shardroute/shardroutetest"
	"github.com/metricfed/shardroute/sink"
	"github.com/metricfed/shardroute/source"
	"github.com/metricfed/shardroute/types"
)

const discoverySubject = "scrape.discovery"

func nodeTarget(i int) types.Target {
	instance := fmt.Sprintf("10.0.0.%d:9100", i)

	return types.Target{
		ID: "node/" + instance,
		Labels: types.NewLabels(map[string]string{
			"job":      "node",
			"instance": instance,
		}),
	}
}

func announce(t *testing.T, nc *nats.Conn, note source.Notification) {
	t.Helper()

	data, err := json.Marshal(note)
	require.NoError(t, err)
	require.NoError(t, nc.Publish(discoverySubject, data))
	require.NoError(t, nc.Flush())
}

func readShardDoc(t *testing.T, kv jetstream.KeyValue, shard string) (sink.ShardAssignment, bool) {
	t.Helper()

	entry, err := kv.Get(t.Context(), "assignment."+shard)
	if err != nil {
		return sink.ShardAssignment{}, false
	}

	var doc sink.ShardAssignment
	require.NoError(t, json.Unmarshal(entry.Value(), &doc))

	return doc, true
}

// TestNATSPipeline_EndToEnd exercises the full path: discovery notifications
// on a subject feed the router, committed assignments land in a JetStream KV
// bucket that scrape orchestrators watch.
func TestNATSPipeline_EndToEnd(t *testing.T) {
	_, nc := shardroutetest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	src, err := source.NewNATS(nc, &source.NATSConfig{
		Subject: discoverySubject,
		Logger:  shardroutetest.NewTestLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, src.Start())
	defer func() { _ = src.Stop() }()

	kvSink, err := sink.EnsureNATSKV(t.Context(), js, "scrape-assignments", &sink.NATSKVConfig{
		DeltaSubject: "scrape.assignment.deltas",
		Conn:         nc,
		Logger:       shardroutetest.NewTestLogger(t),
	})
	require.NoError(t, err)

	_, err = kvSink.DiscoverHighestVersion(t.Context())
	require.NoError(t, err)

	deltaSub, err := nc.SubscribeSync("scrape.assignment.deltas")
	require.NoError(t, err)
	defer func() { _ = deltaSub.Unsubscribe() }()

	cfg := &shardroute.Config{
		LabelSelector:     []string{"job", "instance"},
		RebalanceDebounce: 10 * time.Millisecond,
		TargetTTL:         -1,
	}

	router, err := shardroute.NewRouter(cfg, src,
		shardroute.WithSink(kvSink),
		shardroute.WithLogger(shardroutetest.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, router.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = router.Stop(ctx)
	}()

	router.SetShards([]string{"prometheus-0", "prometheus-1"})

	const targetCount = 10
	for i := range targetCount {
		announce(t, nc, source.Notification{Op: source.OpUpsert, Target: nodeTarget(i)})
	}

	require.Eventually(t, func() bool {
		return src.Len() == targetCount
	}, 3*time.Second, 5*time.Millisecond, "discovery view never converged")

	require.NoError(t, router.RefreshTargets(context.Background()))

	// Every target ends up in exactly one shard document in the KV bucket.
	assignmentsKV, err := js.KeyValue(t.Context(), "scrape-assignments")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		total := 0
		for _, shard := range []string{"prometheus-0", "prometheus-1"} {
			if doc, ok := readShardDoc(t, assignmentsKV, shard); ok {
				total += len(doc.TargetIDs)
			}
		}

		return total == targetCount
	}, 5*time.Second, 10*time.Millisecond, "KV bucket never reflected all targets")

	// The delta subject mirrors the commits.
	msg, err := deltaSub.NextMsg(3 * time.Second)
	require.NoError(t, err)

	var delta types.AssignmentDelta
	require.NoError(t, json.Unmarshal(msg.Data, &delta))
	require.NotZero(t, delta.Version)

	// Target removal propagates through refresh to the bucket.
	announce(t, nc, source.Notification{Op: source.OpRemove, Target: types.Target{ID: nodeTarget(0).ID}})
	require.Eventually(t, func() bool {
		return src.Len() == targetCount-1
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, router.RefreshTargets(context.Background()))

	require.Eventually(t, func() bool {
		total := 0
		for _, shard := range []string{"prometheus-0", "prometheus-1"} {
			if doc, ok := readShardDoc(t, assignmentsKV, shard); ok {
				total += len(doc.TargetIDs)
			}
		}

		return total == targetCount-1
	}, 5*time.Second, 10*time.Millisecond, "removal never reached the bucket")
}

// TestNATSPipeline_ShardGrowthMovesBoundedFraction verifies end to end that
// adding a shard relocates only part of the fleet.
func TestNATSPipeline_ShardGrowthMovesBoundedFraction(t *testing.T) {
	_, nc := shardroutetest.StartEmbeddedNATS(t)

	src, err := source.NewNATS(nc, &source.NATSConfig{Subject: discoverySubject})
	require.NoError(t, err)
	require.NoError(t, src.Start())
	defer func() { _ = src.Stop() }()

	cfg := &shardroute.Config{
		LabelSelector:     []string{"job", "instance"},
		RebalanceDebounce: 10 * time.Millisecond,
		TargetTTL:         -1,
	}

	router, err := shardroute.NewRouter(cfg, src,
		shardroute.WithLogger(shardroutetest.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, router.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = router.Stop(ctx)
	}()

	router.SetShards([]string{"prometheus-0", "prometheus-1", "prometheus-2"})

	const targetCount = 120
	for i := range targetCount {
		announce(t, nc, source.Notification{Op: source.OpUpsert, Target: nodeTarget(i)})
	}
	require.Eventually(t, func() bool {
		return src.Len() == targetCount
	}, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, router.RefreshTargets(context.Background()))

	var before types.Assignment
	require.Eventually(t, func() bool {
		before, _ = router.Current()

		return len(before.Targets) == targetCount
	}, 5*time.Second, 10*time.Millisecond)

	router.SetShards([]string{"prometheus-0", "prometheus-1", "prometheus-2", "prometheus-3"})

	var after types.Assignment
	require.Eventually(t, func() bool {
		after, _ = router.Current()

		return after.ShardSetVersion > before.ShardSetVersion && len(after.Targets) == targetCount
	}, 5*time.Second, 10*time.Millisecond)

	moved := 0
	for id, shard := range after.Targets {
		if before.Targets[id] != shard {
			moved++
			require.Equal(t, "prometheus-3", shard, "moves must land on the new shard only")
		}
	}

	require.Positive(t, moved)
	require.LessOrEqual(t, moved, targetCount/2, "shard growth moved too many targets")
}
