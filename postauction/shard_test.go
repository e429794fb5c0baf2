package postauction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardForIsDeterministic(t *testing.T) {
	a := ShardFor("req-1", 8)
	b := ShardFor("req-1", 8)
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 8)
}

func TestShardForSingleShardAlwaysZero(t *testing.T) {
	require.Equal(t, 0, ShardFor("req-1", 1))
	require.Equal(t, 0, ShardFor("req-1", 0))
}

func TestShardForDistributesAcrossShards(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		seen[ShardFor(randomLikeID(i), 4)] = true
	}
	require.Greater(t, len(seen), 1, "200 distinct request ids should land on more than one shard")
}

func randomLikeID(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for j := range b {
		b[j] = letters[(i*31+j*17)%len(letters)]
	}
	return string(b)
}
