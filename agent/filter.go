package agent

import (
	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/metrics"
)

// SpotCreatives is one ad-spot paired with the creative ids on cfg that may
// serve into it.
type SpotCreatives struct {
	SpotID    string
	Creatives []string
}

// FilterResult is C1's positive outcome: the spots (with compatible
// creatives) an agent is eligible to bid on.
type FilterResult struct {
	Spots []SpotCreatives
}

// Filter runs the cheapest-rejects-first pipeline from spec §4.1 for one
// (agent, request) pair. On rejection it increments m's counter for the
// first failing stage and returns a nil result. The caller-supplied
// RequestCache and ShardMetrics may be shared across every agent evaluated
// against the same request/shard, never across requests/shards.
func Filter(cfg *Config, blacklist *BlacklistStore, req *bidrequest.BidRequest, cache *RequestCache, m *metrics.ShardMetrics) *FilterResult {
	// Stage 0 (supplemented, original_source/rtbkit/core/router): blacklist.
	// Cheapest possible reject; runs before everything else.
	if primaryUser := firstUserID(req); blacklist != nil && blacklist.Blacklisted(cfg, primaryUser, req.URL) {
		m.Count(metrics.ReasonBlacklist)
		return nil
	}

	// Stage 1: exchange filter.
	if !cfg.Exchange.Match(req.Exchange, stringHash(req.Exchange), cache) {
		m.Count(metrics.ReasonExchange)
		return nil
	}

	// Stage 2: hour-of-week bitmap.
	if !IsIncludedHour(cfg.HourOfWeek, req.ArrivedAt) {
		m.Count(metrics.ReasonHourOfWeek)
		return nil
	}

	// Stage 3: user-partition.
	if cfg.Partition.HashSource != "" && cfg.Partition.HashSource != HashNone {
		bucket := cfg.Partition.Bucket(req)
		if !cfg.Partition.Accepts(bucket) {
			m.Count(metrics.ReasonPartition)
			return nil
		}
	}

	// Stage 4: required user-ids present.
	for _, src := range cfg.RequiredUserIDs {
		if _, ok := req.UserIDs[src]; !ok {
			m.Count(metrics.ReasonRequiredUserID)
			return nil
		}
	}

	// Stage 5: segment filters.
	for _, sf := range cfg.Segments {
		if len(sf.ApplyToExchanges) > 0 && !sf.ApplyToExchanges[req.Exchange] {
			continue
		}
		segs, present := req.Segments[sf.Source]
		if !present {
			if sf.ExcludeIfNotPresent {
				m.Count(metrics.ReasonSegment)
				return nil
			}
			continue
		}
		if !anySegmentMatches(sf.IncludeExclude, segs, cache) {
			m.Count(metrics.ReasonSegment)
			return nil
		}
	}

	// Stage 6: host/domain filter.
	hostname := hostOf(req.URL)
	if !cfg.Host.Match(hostname, stringHash(hostname), cache) {
		m.Count(metrics.ReasonHost)
		return nil
	}

	// Stage 7: URL regex filter (memoized on urlHash).
	if !cfg.URL.Match(req.URL, cache.URLHash(req.URL), cache) {
		m.Count(metrics.ReasonURL)
		return nil
	}

	// Stage 8: language regex filter (memoized).
	if !cfg.Language.Match(req.Language, stringHash(req.Language), cache) {
		m.Count(metrics.ReasonLanguage)
		return nil
	}

	// Stage 9: location regex filter (memoized on locationHash).
	if !cfg.Location.Match(req.Location, cache.LocationHash(req.Location), cache) {
		m.Count(metrics.ReasonLocation)
		return nil
	}

	// Stage 10: fold-position filter (per ad-spot; retains only matching spots).
	spots := req.Spots
	if len(cfg.FoldPositions) > 0 {
		filtered := make([]bidrequest.AdSpot, 0, len(spots))
		for _, s := range spots {
			if cfg.FoldPositions[s.Position] {
				filtered = append(filtered, s)
			}
		}
		spots = filtered
	}
	if len(spots) == 0 {
		m.Count(metrics.ReasonFoldPosition)
		return nil
	}

	// Stage 11: ad-tag segment filter.
	tagsJoined := joinTags(req.AdTags)
	if !cfg.AdTags.Match(tagsJoined, stringHash(tagsJoined), cache) {
		m.Count(metrics.ReasonAdTag)
		return nil
	}

	// Stage 12: per-spot creative compatibility.
	result := &FilterResult{Spots: make([]SpotCreatives, 0, len(spots))}
	for _, spot := range spots {
		var ids []string
		for _, cr := range cfg.Creatives {
			if creativeCompatible(cr, spot, req, cache) {
				ids = append(ids, cr.ID)
			}
		}
		if len(ids) > 0 {
			result.Spots = append(result.Spots, SpotCreatives{SpotID: spot.ID, Creatives: ids})
		}
	}
	if len(result.Spots) == 0 {
		m.Count(metrics.ReasonNoCompatibleSpots)
		return nil
	}
	return result
}

func creativeCompatible(cr Creative, spot bidrequest.AdSpot, req *bidrequest.BidRequest, cache *RequestCache) bool {
	formatOK := false
	for _, f := range spot.Formats {
		if f.Width == cr.Width && f.Height == cr.Height {
			formatOK = true
			break
		}
	}
	if !formatOK {
		return false
	}
	if !cr.Exchange.Match(req.Exchange, stringHash(req.Exchange), cache) {
		return false
	}
	if !cr.Language.Match(req.Language, stringHash(req.Language), cache) {
		return false
	}
	if !cr.Location.Match(req.Location, cache.LocationHash(req.Location), cache) {
		return false
	}
	return true
}

func anySegmentMatches(ie IncludeExclude, segs []string, cache *RequestCache) bool {
	for _, s := range segs {
		if ie.Match(s, stringHash(s), cache) {
			return true
		}
	}
	return false
}

func firstUserID(req *bidrequest.BidRequest) string {
	for _, v := range req.UserIDs {
		return v
	}
	return ""
}

func hostOf(url string) string {
	s := url
	if i := indexOf(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := indexOf(s, "/"); i >= 0 {
		s = s[:i]
	}
	return s
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
