// Package shardroutetest provides test utilities for the shardroute library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to
// net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: Logger that writes to the test log
//
// Example usage:
//
//	import (
//	    "testing"
//
//	    "github.com/metricfed/shardroute/shardroutetest"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := shardroutetest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package shardroutetest
