package agent

import (
	"math/rand"

	"github.com/spaolacci/murmur3"

	"github.com/rtbexchange/router/bidrequest"
)

// partitionSource extracts the raw string the partition hash is computed
// over, for every hash source but "random" (spec §4.1 stage 3).
func partitionSource(hs HashSource, req *bidrequest.BidRequest) (string, bool) {
	switch hs {
	case HashNone:
		return "", true // bucket is always 0, handled by caller
	case HashExchange:
		return req.Exchange, true
	case HashProvider:
		id, ok := req.UserIDs[bidrequest.UserIDProvider]
		return id, ok
	case HashIPUA:
		// "ip+userAgent (no separator)" per spec §4.1 stage 3. The ingress
		// record doesn't carry a separate IP field in this uniform shape,
		// so the exchange id stands in for the network-origin component.
		return req.Exchange + req.UserAgent, true
	}
	return "", false
}

// Bucket computes the deterministic (or, for HashRandom, non-deterministic)
// partition bucket for req under p.
func (p UserPartition) Bucket(req *bidrequest.BidRequest) int {
	if p.Modulus <= 0 {
		return 0
	}
	switch p.HashSource {
	case HashNone:
		return 0
	case HashRandom:
		return rand.Intn(p.Modulus)
	default:
		src, ok := partitionSource(p.HashSource, req)
		if !ok {
			return -1 // no value to hash; caller treats as non-matching
		}
		return int(murmur3.Sum64([]byte(src)) % uint64(p.Modulus))
	}
}

// Accepts reports whether bucket falls within any configured accepted range.
// With no ranges configured it accepts every non-negative bucket.
func (p UserPartition) Accepts(bucket int) bool {
	if bucket < 0 {
		return false
	}
	for _, r := range p.Ranges {
		if bucket >= r.Low && bucket < r.High {
			return true
		}
	}
	return len(p.Ranges) == 0
}
