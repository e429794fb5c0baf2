package auction

import (
	"time"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/bidder"
	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/errortypes"
	"github.com/rtbexchange/router/logger"
	"github.com/rtbexchange/router/metrics"
	"github.com/rtbexchange/router/postauction"
)

// command is one unit of work the engine's single dispatcher goroutine
// processes; every mutation of the Auction table happens only from inside
// run(), so the table itself needs no locking (spec §5 "single dispatcher
// task per shard, owning its Auction table without locks").
type command interface{}

type dispatchCmd struct {
	req *bidrequest.BidRequest
}

type bidCmd struct {
	resp bidder.Response
	now  time.Time
}

type deadlineCmd struct {
	requestID string
}

// HandoffFunc is called once per resolved or expired auction, handing the
// resulting PostAuctionRecord to C7 (spec §4.3 "Handoff").
type HandoffFunc func(postauction.Record)

// Engine is C4: it dispatches bid requests through the filter pipeline to
// eligible agents over C5, collects responses, resolves auctions, and
// hands winners off to the post-auction loop. Losing bidders are not
// handed off; the winner's record carries the winner's loss verbosity.
type Engine struct {
	registry  *agent.Registry
	blacklist *agent.BlacklistStore
	channel   bidder.Channel
	banker    banker.Client
	metrics   *metrics.ShardMetrics
	handoff   HandoffFunc

	safetyMargin      time.Duration
	maxBidPriceMicros int64
	lossSeconds       time.Duration

	slowMode *SlowMode

	commands chan command
	auctions map[string]*Auction
	timers   map[string]*time.Timer
}

// EngineConfig bundles Engine's fixed, startup-time dependencies.
type EngineConfig struct {
	Registry          *agent.Registry
	Blacklist         *agent.BlacklistStore
	Channel           bidder.Channel
	Banker            banker.Client
	Metrics           *metrics.ShardMetrics
	Handoff           HandoffFunc
	SafetyMargin      time.Duration
	MaxBidPriceMicros int64
	LossSeconds       time.Duration
	SlowMode          *SlowMode
	QueueDepth        int
}

func NewEngine(cfg EngineConfig) *Engine {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 4096
	}
	e := &Engine{
		registry:          cfg.Registry,
		blacklist:         cfg.Blacklist,
		channel:           cfg.Channel,
		banker:            cfg.Banker,
		metrics:           cfg.Metrics,
		handoff:           cfg.Handoff,
		safetyMargin:      cfg.SafetyMargin,
		maxBidPriceMicros: cfg.MaxBidPriceMicros,
		lossSeconds:       cfg.LossSeconds,
		slowMode:          cfg.SlowMode,
		commands:          make(chan command, depth),
		auctions:          make(map[string]*Auction),
		timers:            make(map[string]*time.Timer),
	}
	e.channel.SetResponseHandler(e)
	return e
}

// Run processes commands until the channel is closed (spec §5 shutdown:
// "drains by marking the ingress closed, resolving remaining auctions with
// whatever bids exist"). Intended to run as the shard's single goroutine.
func (e *Engine) Run() {
	for cmd := range e.commands {
		switch c := cmd.(type) {
		case dispatchCmd:
			e.handleDispatch(c.req)
		case bidCmd:
			e.handleBid(c.resp, c.now)
		case deadlineCmd:
			e.handleDeadline(c.requestID)
		}
	}
	// Drain: resolve everything still open with whatever bids exist.
	for id := range e.auctions {
		e.handleDeadline(id)
	}
}

// Close stops accepting new dispatches and lets Run drain.
func (e *Engine) Close() { close(e.commands) }

// Dispatch registers and fans out req (spec §4.3 "dispatch(request)").
// Non-blocking from the caller's perspective up to the queue's depth.
func (e *Engine) Dispatch(req *bidrequest.BidRequest) {
	e.commands <- dispatchCmd{req: req}
}

// OnResponse implements bidder.ResponseHandler: every agent reply re-enters
// through the single command queue so it's processed on the owning
// goroutine (spec §5 "Responses from agents arrive on the same task via a
// message queue, preserving per-shard ordering").
func (e *Engine) OnResponse(resp bidder.Response) {
	e.commands <- bidCmd{resp: resp, now: time.Now()}
}

func (e *Engine) handleDispatch(req *bidrequest.BidRequest) {
	deadline := req.Deadline(e.safetyMargin)
	a := NewAuction(req, deadline)

	minFloor := int64(0)
	for i, s := range req.Spots {
		if i == 0 || s.FloorMicros < minFloor {
			minFloor = s.FloorMicros
		}
	}
	if e.slowMode != nil && !e.slowMode.Admit(minFloor, time.Now()) {
		// Refused at admission: still record it as an immediately-expired,
		// winnerless auction so callers observing auction lifecycle see a
		// terminal state rather than silence.
		a.State = StateExpired
		e.auctions[req.ID] = a
		e.finish(a)
		return
	}

	cache := agent.NewRequestCache()
	for _, cfg := range e.registry.Snapshot() {
		if cfg.Passive() {
			continue
		}
		result := agent.Filter(cfg, e.blacklist, req, cache, e.metrics)
		if result == nil {
			continue
		}
		a.AddDispatch(cfg.AgentID, result.Spots)
		e.channel.Send(cfg.AgentID, req, result.Spots, deadline)
	}

	e.auctions[req.ID] = a
	e.scheduleDeadline(req.ID, deadline)
}

func (e *Engine) scheduleDeadline(requestID string, deadline time.Time) {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	e.timers[requestID] = time.AfterFunc(d, func() {
		e.commands <- deadlineCmd{requestID: requestID}
	})
}

// handleBid implements onBid(request-id, agent-id, bid) (spec §4.3).
func (e *Engine) handleBid(resp bidder.Response, now time.Time) {
	a, ok := e.auctions[resp.RequestID]
	if !ok {
		// The auction already resolved or expired and left the table.
		e.metrics.Count(metrics.ReasonBidLate)
		logger.Warnf("%s", (&errortypes.BidLate{RequestID: resp.RequestID, AgentID: resp.AgentID}).Error())
		return
	}
	if a.Terminal() || now.After(a.Deadline) {
		e.metrics.Count(metrics.ReasonBidLate)
		logger.Warnf("%s", (&errortypes.BidLate{RequestID: resp.RequestID, AgentID: resp.AgentID}).Error())
		return
	}
	if resp.NoBid {
		return
	}
	for _, sb := range resp.Bids {
		price := sb.MaxPriceMicros
		if e.maxBidPriceMicros > 0 && price > e.maxBidPriceMicros {
			price = e.maxBidPriceMicros
			e.metrics.Count(metrics.ReasonBidClipped)
		}
		a.RecordBid(&Bid{
			AgentID:        resp.AgentID,
			AdSpotID:       sb.SpotID,
			CreativeID:     sb.CreativeID,
			MaxPriceMicros: price,
			Currency:       sb.Currency,
			AccountKey:     sb.AccountKey,
			Timestamp:      now,
		})
	}
}

// handleDeadline implements onDeadline(request-id) (spec §4.3).
func (e *Engine) handleDeadline(requestID string) {
	a, ok := e.auctions[requestID]
	if !ok || a.Terminal() {
		return
	}
	e.resolve(a)
}

// resolve walks the request's spots in order and keeps the first one that
// yields a winner, as a single auction yields a single winning impression in
// this exchange model, then finalizes the Auction's state (spec §4.3
// resolution rule).
func (e *Engine) resolve(a *Auction) {
	started := a.CreatedAt
	defer func() {
		e.metrics.ObserveAuctionLatency(time.Since(started).Nanoseconds())
	}()

	if t, ok := e.timers[a.Request.ID]; ok {
		t.Stop()
		delete(e.timers, a.Request.ID)
	}

	var best *Resolution
	for _, spot := range a.Request.Spots {
		cands := candidatesForSpot(a, spot.ID, e.registry)
		if len(cands) == 0 {
			continue
		}
		res := resolveSpot(spot, cands)
		if res != nil {
			best = res
			break // one winning impression per auction
		}
	}

	if best == nil {
		a.State = StateExpired
		e.finish(a)
		return
	}

	if !e.authorizeWinner(best) {
		// Commit failed: demote, try the runner-up by simply re-resolving
		// without the failed winner's bids.
		delete(a.Bids, best.WinnerAgentID)
		e.resolve(a)
		return
	}

	a.Resolution = best
	a.State = StateResolved
	e.metrics.ObserveBidPrice(best.ClearPriceMicros)
	if e.slowMode != nil {
		e.slowMode.RecordSpend(best.ClearPriceMicros, time.Now())
	}
	e.finish(a)
}

// authorizeWinner commits the clear price against the winner's account,
// per spec §4.3 "Banker interaction": a failed commit demotes the winner.
func (e *Engine) authorizeWinner(res *Resolution) bool {
	cfg, err := e.registry.Lookup(res.WinnerAgentID)
	if err != nil {
		return false
	}
	handle, err := e.banker.Authorize(cfg.Account, res.ClearPriceMicros, res.Currency)
	if err != nil {
		e.metrics.Count(metrics.ReasonBankerInsufficient)
		return false
	}
	if err := e.banker.Commit(handle, res.ClearPriceMicros); err != nil {
		e.metrics.Count(metrics.ReasonBankerInsufficient)
		return false
	}
	res.reservation = handle
	res.account = cfg.Account
	return true
}

// finish removes a terminal auction from the live table and, if it resolved
// with a winner, hands it to the post-auction loop (spec §4.3 "Handoff").
func (e *Engine) finish(a *Auction) {
	delete(e.auctions, a.Request.ID)

	if e.handoff == nil {
		return
	}

	now := time.Now()
	if a.Resolution != nil && a.Resolution.HasWinner {
		cfg, _ := e.registry.Lookup(a.Resolution.WinnerAgentID)
		lossVerbosity := agent.VerbosityNone
		if cfg != nil {
			lossVerbosity = cfg.BidResultVerbosity.Loss
		}
		e.handoff(postauction.Record{
			RequestID:           a.Request.ID,
			WinnerAgentID:       a.Resolution.WinnerAgentID,
			WinnerCreativeID:    a.Resolution.WinnerCreativeID,
			WinnerSpotID:        a.Resolution.WinnerSpotID,
			ExpectedPriceMicros: a.Resolution.ClearPriceMicros,
			Currency:            a.Resolution.Currency,
			Account:             a.Resolution.account,
			ReservationHandle:   a.Resolution.reservation,
			AuctionTimeoutAt:    now.Add(e.lossSeconds),
			LossVerbosity:       lossVerbosity,
			CreatedAt:           now,
		})
	}
}
