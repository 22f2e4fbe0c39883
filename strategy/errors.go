package strategy

import "errors"

// ErrNoShards indicates that no shards were provided to locate against.
var ErrNoShards = errors.New("no shards available for routing")
