package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/bidder"
	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/metrics"
	"github.com/rtbexchange/router/postauction"
)

func registerTestAgent(t *testing.T, reg *agent.Registry, id, account string, roundRobinGroup string, weight int) {
	t.Helper()
	cfg := &agent.Config{
		Account:        account,
		BidProbability: 1,
		BidControl:     agent.BidControlRelay,
		Creatives:      []agent.Creative{{ID: "cr-1", Width: 300, Height: 250}},
		RoundRobinGroup:  roundRobinGroup,
		RoundRobinWeight: weight,
	}
	for i := range cfg.HourOfWeek {
		cfg.HourOfWeek[i] = true
	}
	require.NoError(t, reg.Register(id, cfg))
}

func testRequest(id string, floor int64) *bidrequest.BidRequest {
	return &bidrequest.BidRequest{
		ID:            id,
		Exchange:      "exch-a",
		URL:           "https://news.example.com",
		ArrivedAt:     time.Now(),
		TimeAvailable: 200 * time.Millisecond,
		Spots: []bidrequest.AdSpot{
			{ID: "spot-1", Formats: []bidrequest.Format{{Width: 300, Height: 250}}, FloorMicros: floor},
		},
	}
}

func newTestEngine(t *testing.T, reg *agent.Registry, ch *bidder.Mock, bk banker.Client, handoff HandoffFunc) *Engine {
	t.Helper()
	e := NewEngine(EngineConfig{
		Registry:     reg,
		Blacklist:    agent.NewBlacklistStore(),
		Channel:      ch,
		Banker:       bk,
		Metrics:      metrics.NewShardMetrics(),
		Handoff:      handoff,
		SafetyMargin: 0,
		LossSeconds:  10 * time.Second,
	})
	go e.Run()
	t.Cleanup(e.Close)
	return e
}

func TestEngineResolvesSecondPriceWithOneCentFloor(t *testing.T) {
	reg := agent.NewRegistry()
	registerTestAgent(t, reg, "agent-1", "acct-1", "", 0)
	registerTestAgent(t, reg, "agent-2", "acct-2", "", 0)

	ch := bidder.NewMock()
	ch.Script("agent-1", bidder.Response{Bids: []bidder.SpotBid{{SpotID: "spot-1", CreativeID: "cr-1", MaxPriceMicros: 5000}}})
	ch.Script("agent-2", bidder.Response{Bids: []bidder.SpotBid{{SpotID: "spot-1", CreativeID: "cr-1", MaxPriceMicros: 3000}}})

	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000, "acct-2": 1_000_000})

	records := make(chan postauction.Record, 1)
	e := newTestEngine(t, reg, ch, bk, func(r postauction.Record) { records <- r })

	e.Dispatch(testRequest("req-1", 1000))

	select {
	case r := <-records:
		require.Equal(t, "agent-1", r.WinnerAgentID)
		require.Equal(t, int64(3001), r.ExpectedPriceMicros)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution")
	}
}

func TestEngineDemotesWinnerOnBankerInsufficient(t *testing.T) {
	reg := agent.NewRegistry()
	registerTestAgent(t, reg, "agent-1", "acct-1", "", 0)
	registerTestAgent(t, reg, "agent-2", "acct-2", "", 0)

	ch := bidder.NewMock()
	ch.Script("agent-1", bidder.Response{Bids: []bidder.SpotBid{{SpotID: "spot-1", CreativeID: "cr-1", MaxPriceMicros: 5000}}})
	ch.Script("agent-2", bidder.Response{Bids: []bidder.SpotBid{{SpotID: "spot-1", CreativeID: "cr-1", MaxPriceMicros: 3000}}})

	// acct-1 (the would-be winner) has no funds; acct-2 does.
	bk := banker.NewMock(map[string]int64{"acct-1": 0, "acct-2": 1_000_000})

	records := make(chan postauction.Record, 1)
	e := newTestEngine(t, reg, ch, bk, func(r postauction.Record) { records <- r })

	e.Dispatch(testRequest("req-2", 1000))

	select {
	case r := <-records:
		require.Equal(t, "agent-2", r.WinnerAgentID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution")
	}
}

func TestEngineExpiresWithNoBids(t *testing.T) {
	reg := agent.NewRegistry()
	registerTestAgent(t, reg, "agent-1", "acct-1", "", 0)

	ch := bidder.NewMock()
	bk := banker.NewMock(nil)

	handoffCalled := make(chan struct{}, 1)
	e := newTestEngine(t, reg, ch, bk, func(r postauction.Record) { handoffCalled <- struct{}{} })

	req := testRequest("req-3", 1000)
	req.TimeAvailable = 20 * time.Millisecond
	e.Dispatch(req)

	select {
	case <-handoffCalled:
		t.Fatal("no-winner auction must not hand off a record")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEngineIgnoresLateBid(t *testing.T) {
	reg := agent.NewRegistry()
	registerTestAgent(t, reg, "agent-1", "acct-1", "", 0)

	ch := bidder.NewMock()
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})

	records := make(chan postauction.Record, 1)
	e := newTestEngine(t, reg, ch, bk, func(r postauction.Record) { records <- r })

	req := testRequest("req-4", 1000)
	req.TimeAvailable = 30 * time.Millisecond
	e.Dispatch(req)

	time.Sleep(80 * time.Millisecond)
	// Deliver a bid well after the deadline must have already fired; this
	// simulates the engine's own deadline timer having already resolved the
	// auction by the time a straggling response arrives.
	ch.Script("agent-1", bidder.Response{Bids: []bidder.SpotBid{{SpotID: "spot-1", CreativeID: "cr-1", MaxPriceMicros: 5000}}})
	ch.Send("agent-1", req, nil, time.Time{})

	select {
	case <-records:
		t.Fatal("a bid arriving after the deadline must not produce a winner")
	case <-time.After(150 * time.Millisecond):
	}
}
