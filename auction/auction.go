// Package auction implements the per-auction state record (C3) and the
// deadline-driven engine that dispatches, collects, and resolves auctions
// (C4), per spec §3 and §4.3.
package auction

import (
	"time"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/bidrequest"
)

// State is the per-Auction lifecycle state from spec §4.3.
type State int

const (
	StateOpen State = iota
	StateCollecting
	StateResolved
	StateExpired
)

// Bid is one agent's response to a dispatch (spec §3).
type Bid struct {
	AgentID        string
	AdSpotID       string
	CreativeID     string
	MaxPriceMicros int64
	Currency       string
	AccountKey     string
	Timestamp      time.Time
}

// Dispatched is the (agent, creative-subset) pair the engine sent out for
// one auction (spec §3 "set of dispatched (agent, creative-subset) pairs").
type Dispatched struct {
	AgentID string
	Spots   []agent.SpotCreatives
}

// Resolution is the fixed, never-revised outcome of a resolved auction
// (spec §3 invariant: "once a winner is fixed it is never revised").
type Resolution struct {
	HasWinner          bool
	WinnerAgentID      string
	WinnerSpotID       string
	WinnerCreativeID   string
	ClearPriceMicros   int64
	RunnerUpPriceMicros int64
	Currency           string

	// reservation/account carry the committed banker handle through to
	// handoff; never set by resolveSpot, only by Engine.authorizeWinner.
	reservation banker.Handle
	account     string
}

// Auction is the per-in-flight-request record C4 exclusively owns until
// handoff (spec §3). It is never touched from more than one goroutine: a
// single dispatcher task per shard owns its whole Auction table without
// locks (spec §5).
type Auction struct {
	Request    *bidrequest.BidRequest
	Deadline   time.Time
	State      State
	Dispatched map[string]Dispatched // agentID -> dispatch record
	Bids       map[string]*Bid       // agentID -> received bid; absent means no response yet
	arrival    []string              // agent ids, in the order their bid arrived (tie-break)

	Resolution *Resolution
	CreatedAt  time.Time
}

func NewAuction(req *bidrequest.BidRequest, deadline time.Time) *Auction {
	return &Auction{
		Request:    req,
		Deadline:   deadline,
		State:      StateOpen,
		Dispatched: make(map[string]Dispatched),
		Bids:       make(map[string]*Bid),
		CreatedAt:  time.Now(),
	}
}

// Terminal reports whether the auction has reached a final state.
func (a *Auction) Terminal() bool {
	return a.State == StateResolved || a.State == StateExpired
}

// AddDispatch records that agentID was sent a sub-request, transitioning
// open -> collecting on the first one (spec §4.3).
func (a *Auction) AddDispatch(agentID string, spots []agent.SpotCreatives) {
	a.Dispatched[agentID] = Dispatched{AgentID: agentID, Spots: spots}
	if a.State == StateOpen {
		a.State = StateCollecting
	}
}

// RecordBid stores agentID's bid and tracks arrival order for tie-breaking.
// Caller must already have checked the auction is open for bids.
func (a *Auction) RecordBid(b *Bid) {
	if _, exists := a.Bids[b.AgentID]; !exists {
		a.arrival = append(a.arrival, b.AgentID)
	}
	a.Bids[b.AgentID] = b
}

// ArrivalOrder returns agent ids in the order their bids arrived.
func (a *Auction) ArrivalOrder() []string { return a.arrival }
