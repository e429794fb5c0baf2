// Package postauction implements the join store (C7) and correlation loop
// (C8) from spec §4.6–4.7: resolved auctions are handed off here, where
// they wait for a win notification and delivery events before emitting a
// final downstream outcome.
package postauction

import (
	"time"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/banker"
)

// EventType names a correlated downstream event (spec §4.7).
type EventType string

const (
	EventWin        EventType = "win"
	EventLoss       EventType = "loss"
	EventNoDelivery EventType = "no_delivery"
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
)

// Record is the C7 PostAuctionRecord: everything the correlation loop
// needs to know about one resolved auction until it reaches a terminal
// emission or eviction (spec §3 "Auction" and §4.6).
type Record struct {
	RequestID        string
	WinnerAgentID    string
	WinnerCreativeID string
	WinnerSpotID     string
	ExpectedPriceMicros int64
	ActualPriceMicros   int64 // set once a win notification arrives; may differ from expected
	Currency         string
	Account          string

	ReservationHandle banker.Handle

	AuctionTimeoutAt time.Time // lossSeconds after handoff; fires "loss" if no win yet
	WinTimeoutAt     time.Time // set once a win is recorded; fires "no-delivery" if undelivered

	LossVerbosity agent.Verbosity // winner's loss-message verbosity, irrelevant once won
	HasWon        bool
	ImpressionSeen bool
	ClickSeen      bool

	CreatedAt time.Time
}

// Emitted is one correlated outcome the loop hands to event sinks.
type Emitted struct {
	RequestID  string
	AgentID    string
	Type       EventType
	PriceMicros int64
	Currency   string
	Timestamp  time.Time
}

// AdEvent is an inbound adserver notification (spec §4.7, §6 "Adserver
// ingress"): a win (carrying the actual, possibly-different win price) or
// a delivery event (impression, click).
type AdEvent struct {
	RequestID string
	Type      EventType
	PriceMicros int64 // only meaningful for EventWin
	Timestamp time.Time
}
