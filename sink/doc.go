// Package sink provides built-in assignment sink implementations.
//
// Assignment sinks deliver committed routing tables to the collaborators
// that act on them, such as scrape orchestrators reloading per-shard
// configurations. The package includes:
//
//   - NATSKV: per-shard assignment documents in a JetStream KV bucket,
//     with the commit delta mirrored to a notification subject
//
// Custom sinks can be implemented by satisfying the types.AssignmentSink
// interface.
package sink
