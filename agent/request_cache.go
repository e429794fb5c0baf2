package agent

import "github.com/spaolacci/murmur3"

// regexKey memoizes one (compiled-pattern identity, input) evaluation
// (spec §4.1 "Regex caching semantics").
type regexKey struct {
	regexHash, inputHash uint64
}

// RequestCache is the per-request, single-goroutine memoization cache the
// filter pipeline contract requires: urlHash/locationHash computed once,
// and every regex-identity × input-hash evaluation cached so that N agents
// sharing the same URL/location/language regex pay for the match once.
// Scoped to one request and thread-local — never shared across goroutines.
type RequestCache struct {
	urlHash      uint64
	urlHashSet   bool
	locationHash uint64
	locHashSet   bool

	regexMemo map[regexKey]bool
}

func NewRequestCache() *RequestCache {
	return &RequestCache{regexMemo: make(map[regexKey]bool, 8)}
}

// stringHash is the general-purpose input hash for regex memoization on
// fields the pipeline doesn't special-case with a dedicated cached hash
// (exchange, host, ad-tags): cheap to recompute, but still lets repeated
// agents checked against the same request share memo hits.
func stringHash(s string) uint64 {
	return murmur3.Sum64([]byte(s))
}

func (c *RequestCache) URLHash(url string) uint64 {
	if !c.urlHashSet {
		c.urlHash = murmur3.Sum64([]byte(url))
		c.urlHashSet = true
	}
	return c.urlHash
}

func (c *RequestCache) LocationHash(location string) uint64 {
	if !c.locHashSet {
		c.locationHash = murmur3.Sum64([]byte(location))
		c.locHashSet = true
	}
	return c.locationHash
}

// evalRegexSet reports whether any regex in res matches input, consulting
// and populating the memo cache keyed by (pattern identity, input hash).
func (c *RequestCache) evalRegexSet(res []*regexpWithHash, input string, inputHash uint64) bool {
	for _, r := range res {
		key := regexKey{regexHash: r.hash, inputHash: inputHash}
		hit, ok := c.regexMemo[key]
		if !ok {
			hit = r.re.MatchString(input)
			c.regexMemo[key] = hit
		}
		if hit {
			return true
		}
	}
	return false
}
