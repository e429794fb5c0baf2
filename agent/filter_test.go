package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/metrics"
)

func baseRequest() *bidrequest.BidRequest {
	return &bidrequest.BidRequest{
		ID:        "req-1",
		Exchange:  "exch-a",
		URL:       "https://news.example.com/story",
		Language:  "en",
		Location:  "US",
		UserAgent: "test-agent",
		ArrivedAt: time.Date(2026, 8, 6, 15, 0, 0, 0, time.UTC), // Thursday
		Spots: []bidrequest.AdSpot{
			{ID: "spot-1", Position: "above_fold", Formats: []bidrequest.Format{{Width: 300, Height: 250}}},
		},
		UserIDs: map[bidrequest.UserIDSource]string{bidrequest.UserIDCookie: "user-1"},
	}
}

func baseConfig() *Config {
	cfg := &Config{
		Account:        "acct-1",
		BidProbability: 1,
		BidControl:     BidControlRelay,
		Creatives: []Creative{
			{ID: "cr-1", Width: 300, Height: 250},
		},
	}
	for i := range cfg.HourOfWeek {
		cfg.HourOfWeek[i] = true
	}
	return cfg
}

func mustCompile(t *testing.T, cfg *Config) {
	t.Helper()
	require.NoError(t, cfg.Compile())
	require.NoError(t, cfg.Validate())
}

func TestFilterAcceptsMatchingRequest(t *testing.T) {
	cfg := baseConfig()
	mustCompile(t, cfg)

	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), metrics.NewShardMetrics())
	require.NotNil(t, res)
	require.Len(t, res.Spots, 1)
	require.Equal(t, "spot-1", res.Spots[0].SpotID)
	require.Equal(t, []string{"cr-1"}, res.Spots[0].Creatives)
}

func TestFilterRejectsOnExchangeMismatch(t *testing.T) {
	cfg := baseConfig()
	cfg.Exchange = IncludeExclude{Include: []string{"some-other-exchange"}}
	mustCompile(t, cfg)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonExchange])
}

func TestFilterRejectsOutsideHourOfWeek(t *testing.T) {
	cfg := baseConfig()
	cfg.HourOfWeek = [168]bool{} // no hours included
	mustCompile(t, cfg)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonHourOfWeek])
}

func TestFilterRejectsOnRequiredUserIDMissing(t *testing.T) {
	cfg := baseConfig()
	cfg.RequiredUserIDs = []bidrequest.UserIDSource{bidrequest.UserIDProvider}
	mustCompile(t, cfg)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonRequiredUserID])
}

func TestFilterRejectsOnFoldPositionMismatch(t *testing.T) {
	cfg := baseConfig()
	cfg.FoldPositions = map[string]bool{"below_fold": true}
	mustCompile(t, cfg)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonFoldPosition])
}

func TestFilterRejectsOnNoCompatibleCreative(t *testing.T) {
	cfg := baseConfig()
	cfg.Creatives = []Creative{{ID: "cr-1", Width: 728, Height: 90}}
	mustCompile(t, cfg)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonNoCompatibleSpots])
}

func TestFilterRejectsBlacklistedUser(t *testing.T) {
	cfg := baseConfig()
	cfg.Blacklist = Blacklist{Mode: BlacklistUser, Scope: BlacklistScopeAgent, Duration: 60}
	cfg.AgentID = "agent-1"
	mustCompile(t, cfg)

	bl := NewBlacklistStore()
	bl.Add(BlacklistScopeAgent, cfg.AgentID, "user-1", "", time.Minute)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, bl, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonBlacklist])
}

func TestFilterRejectsOnSegmentExcludeIfNotPresent(t *testing.T) {
	cfg := baseConfig()
	cfg.Segments = []SegmentFilter{
		{Source: "dmp", ExcludeIfNotPresent: true},
	}
	mustCompile(t, cfg)

	m := metrics.NewShardMetrics()
	res := Filter(cfg, nil, baseRequest(), NewRequestCache(), m)
	require.Nil(t, res)
	require.Equal(t, int64(1), m.Snapshot()[metrics.ReasonSegment])
}

func TestFilterSharesRegexCacheAcrossAgents(t *testing.T) {
	cfg1 := baseConfig()
	cfg1.URL = IncludeExclude{Include: []string{"news\\.example\\.com"}, Regex: true}
	mustCompile(t, cfg1)

	cfg2 := baseConfig()
	cfg2.URL = IncludeExclude{Include: []string{"news\\.example\\.com"}, Regex: true}
	mustCompile(t, cfg2)

	cache := NewRequestCache()
	m := metrics.NewShardMetrics()
	req := baseRequest()

	require.NotNil(t, Filter(cfg1, nil, req, cache, m))
	require.NotNil(t, Filter(cfg2, nil, req, cache, m))
}
