// Package bidder defines the C5 bidder channel interface (spec §4.4): the
// engine's only way to reach an agent and the only way an agent's response
// gets back in. The engine never blocks on Send; delivery is at-most-once
// and responses for different auctions may interleave arbitrarily.
package bidder

import (
	"time"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/bidrequest"
)

// SpotBid is one agent's bid for one ad spot.
type SpotBid struct {
	SpotID         string
	CreativeID     string
	MaxPriceMicros int64
	Currency       string
	AccountKey     string
}

// Response is an agent's reply to one dispatch: either a set of per-spot
// bids, or an explicit no-bid (spec §4.4 "Agent reply").
type Response struct {
	RequestID string
	AgentID   string
	Bids      []SpotBid
	NoBid     bool
	Timestamp time.Time
}

// ResponseHandler receives responses as they arrive. The auction engine
// implements this. HTTPChannel calls it from the goroutine that performed the
// send, never synchronously from Send; Mock calls it synchronously from
// inside Send unless its Async field is set.
type ResponseHandler interface {
	OnResponse(Response)
}

// Channel is the C5 contract: fire-and-forget dispatch downward, a single
// upward callback. Implementations guarantee at-most-once delivery per
// (requestID, agentID) and must never retry on the engine's behalf.
type Channel interface {
	// Send dispatches req's eligible spots/creatives to agentID. deadline is
	// the wall-clock time past which a response is useless to the engine;
	// implementations should use it to bound their own wait, not to retry.
	Send(agentID string, req *bidrequest.BidRequest, spots []agent.SpotCreatives, deadline time.Time)

	// SetResponseHandler registers the sole receiver of OnResponse calls.
	// Called once at startup, before the channel handles any traffic.
	SetResponseHandler(h ResponseHandler)
}
