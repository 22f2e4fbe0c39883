// Package types contains the core data model and interfaces shared by all
// shardroute components.
//
// Placing the model in its own package lets internal packages depend on it
// without importing the root shardroute package, avoiding import cycles.
// The root package re-exports the commonly used definitions as aliases.
package types
