package agent

// Match reports whether input passes ie: exclude always wins, then include
// (an empty include list means "anything not excluded passes"). For
// Regex == false, Include/Exclude are treated as exact-match string sets.
// For Regex == true, matches are memoized in cache keyed by (pattern
// identity hash, inputHash) per spec §4.1's caching semantics.
func (ie *IncludeExclude) Match(input string, inputHash uint64, cache *RequestCache) bool {
	if !ie.Regex {
		if setContains(ie.Exclude, input) {
			return false
		}
		if len(ie.Include) == 0 {
			return true
		}
		return setContains(ie.Include, input)
	}

	if cache.evalRegexSet(ie.excludeRe, input, inputHash) {
		return false
	}
	if len(ie.includeRe) == 0 {
		return true
	}
	return cache.evalRegexSet(ie.includeRe, input, inputHash)
}

func setContains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
