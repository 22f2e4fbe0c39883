// Package source provides built-in target source implementations.
//
// Target sources feed the router's discovery side. The package includes:
//
//   - Static: fixed list of targets, updatable for tests and bootstrap
//   - NATS: targets maintained from discovery notifications on a subject
//
// Custom sources can be implemented by satisfying the types.TargetSource
// interface.
package source
