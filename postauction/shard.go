package postauction

import "github.com/spaolacci/murmur3"

// ShardFor hashes requestID into one of n shards (spec §4.7 "Sharding":
// "sharded by a hash of request-id into N independent shards... cross-shard
// traffic does not exist by construction"). Uses the same murmur3 hash the
// agent filter pipeline's regex cache and partition filter use, so the
// distribution behavior is consistent across the codebase.
func ShardFor(requestID string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(murmur3.Sum64([]byte(requestID)) % uint64(n))
}
