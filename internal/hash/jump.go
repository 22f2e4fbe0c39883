package hash

// Jump implements the jump consistent hash function from Lamping and Veach,
// "A Fast, Minimal Memory, Consistent Hash Algorithm" (2014).
//
// It maps a 64-bit key to a bucket in [0, numBuckets) with no per-bucket
// state. When numBuckets grows from N to N+1, only ~1/(N+1) of keys change
// bucket, and keys only ever move to the new bucket, never between existing
// ones. The trade-off is that buckets are positional: removing anything but
// the last bucket reshuffles, so callers must keep the shard list
// append-ordered for the minimal-movement property to hold.
//
// Parameters:
//   - key: 64-bit routing key
//   - numBuckets: Number of buckets (must be > 0)
//
// Returns:
//   - int: Bucket index in [0, numBuckets), or -1 when numBuckets <= 0
func Jump(key uint64, numBuckets int) int {
	if numBuckets <= 0 {
		return -1
	}

	var b int64 = -1
	var j int64

	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}
