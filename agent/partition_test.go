package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/bidrequest"
)

func TestUserPartitionBucketDeterministicByExchange(t *testing.T) {
	p := UserPartition{HashSource: HashExchange, Modulus: 10}
	req := &bidrequest.BidRequest{Exchange: "exch-a"}

	b1 := p.Bucket(req)
	b2 := p.Bucket(req)
	require.Equal(t, b1, b2)
	require.GreaterOrEqual(t, b1, 0)
	require.Less(t, b1, 10)
}

func TestUserPartitionBucketNoneIsAlwaysZero(t *testing.T) {
	p := UserPartition{HashSource: HashNone, Modulus: 10}
	req := &bidrequest.BidRequest{Exchange: "exch-a"}
	require.Equal(t, 0, p.Bucket(req))
}

func TestUserPartitionBucketMissingProviderIDIsNonMatching(t *testing.T) {
	p := UserPartition{HashSource: HashProvider, Modulus: 10}
	req := &bidrequest.BidRequest{UserIDs: map[bidrequest.UserIDSource]string{}}
	require.Equal(t, -1, p.Bucket(req))
	require.False(t, p.Accepts(p.Bucket(req)))
}

func TestUserPartitionAcceptsWithinRange(t *testing.T) {
	p := UserPartition{Ranges: []PartitionRange{{Low: 0, High: 5}}}
	require.True(t, p.Accepts(3))
	require.False(t, p.Accepts(5))
	require.False(t, p.Accepts(7))
}

func TestUserPartitionAcceptsEmptyRangesAcceptsAll(t *testing.T) {
	p := UserPartition{}
	require.True(t, p.Accepts(0))
	require.True(t, p.Accepts(99))
}

func TestUserPartitionAcceptsNegativeBucketNeverMatches(t *testing.T) {
	p := UserPartition{Ranges: []PartitionRange{{Low: 0, High: 5}}}
	require.False(t, p.Accepts(-1))
}
