// Package agent holds the agent configuration data model (spec §3) and the
// registry (C2) and filter pipeline (C1) that operate on it.
package agent

import (
	"regexp"

	"github.com/rtbexchange/router/bidrequest"
)

// HashSource selects how a request is mapped into a user-partition bucket
// (spec §4.1 stage 3).
type HashSource string

const (
	HashNone     HashSource = "none"
	HashRandom   HashSource = "random"
	HashExchange HashSource = "exchange_id"
	HashProvider HashSource = "provider_id"
	HashIPUA     HashSource = "ip_ua"
)

// BidControl fixes how an agent's bid is treated relative to the auction
// (spec §3).
type BidControl string

const (
	BidControlRelay          BidControl = "relay"
	BidControlRelayFixed     BidControl = "relay_with_fixed_price"
	BidControlFixedOnlyNoRelay BidControl = "fixed_only_no_relay"
)

// BlacklistScope is the unit a blacklist entry applies to (supplemented
// from original_source/rtbkit/core/router).
type BlacklistScope string

const (
	BlacklistScopeAgent   BlacklistScope = "agent"
	BlacklistScopeAccount BlacklistScope = "account"
)

// BlacklistMode selects whether/how blacklisting is enforced.
type BlacklistMode string

const (
	BlacklistOff        BlacklistMode = "off"
	BlacklistUser       BlacklistMode = "user"
	BlacklistUserOnSite BlacklistMode = "user_on_site"
)

// Verbosity controls how much detail a bid-result message carries back to
// an agent for a given outcome.
type Verbosity string

const (
	VerbosityFull        Verbosity = "full"
	VerbosityLightweight Verbosity = "lightweight"
	VerbosityNone        Verbosity = "none"
)

// IncludeExclude is a generic include/exclude string set, optionally
// regex-capable (spec §3 host/url/language/location/exchange filters).
type IncludeExclude struct {
	Include []string
	Exclude []string
	Regex   bool

	includeRe []*regexpWithHash
	excludeRe []*regexpWithHash
}

// regexpWithHash pairs a compiled pattern with the stable 64-bit identity
// hash the per-request cache memoizes match results under.
type regexpWithHash struct {
	re   *regexp.Regexp
	hash uint64
}

// SegmentFilter is one per-segment-source include/exclude rule (spec §3,
// §4.1 stage 5).
type SegmentFilter struct {
	Source              string
	IncludeExclude      IncludeExclude
	ExcludeIfNotPresent bool
	ApplyToExchanges    map[string]bool // exchanges this filter applies to; empty means all
}

// PartitionRange is one accepted [Low, High) bucket range for user-partitioning.
type PartitionRange struct {
	Low, High int
}

// UserPartition deterministically buckets a request into one of Modulus
// buckets and accepts it iff the bucket falls in one of Ranges; with no
// Ranges configured, every non-negative bucket is accepted.
type UserPartition struct {
	HashSource HashSource
	Modulus    int
	Ranges     []PartitionRange
}

// Blacklist configures post-loss/error blacklisting of (user, site) pairs.
type Blacklist struct {
	Mode     BlacklistMode
	Scope    BlacklistScope
	Duration int // seconds
}

// BidResultVerbosity is per-outcome message verbosity (spec §3).
type BidResultVerbosity struct {
	Win   Verbosity
	Loss  Verbosity
	Error Verbosity
}

// Creative is one ad unit owned by an agent (spec §3).
type Creative struct {
	ID       string
	Name     string
	Width    int
	Height   int
	Tags     map[string]bool
	TagExpr  string // campaign eligibility expression over Tags
	Language IncludeExclude
	Location IncludeExclude
	Exchange IncludeExclude
	Provider map[string]any // opaque per-provider payload
}

// Config is the declarative bidding policy of one agent (spec §3).
type Config struct {
	AgentID  string
	Account  string
	ExternalID string
	Test     bool

	BidProbability     float64
	MinTimeAvailableMs float64
	MaxInFlight        int

	RoundRobinGroup  string
	RoundRobinWeight int

	RequiredUserIDs []bidrequest.UserIDSource

	Host     IncludeExclude
	URL      IncludeExclude
	Language IncludeExclude
	Location IncludeExclude
	Exchange IncludeExclude

	FoldPositions map[string]bool // empty means all positions pass

	Segments []SegmentFilter
	AdTags   IncludeExclude

	HourOfWeek [168]bool // index = dayOfWeek*24 + hourUTC; bit set = included

	Partition UserPartition

	Creatives []Creative

	Blacklist  Blacklist
	BidControl BidControl
	FixedCPMMicros int64

	Augmentations []string // ordered by name

	VisitChannels map[string]bool // subscribed event channels

	BidResultVerbosity BidResultVerbosity

	Provider map[string]any // opaque per-provider configuration
}

// Passive reports whether the agent never bids (so an empty creative list
// is legal per spec §3's invariant).
func (c *Config) Passive() bool {
	return c.BidProbability == 0
}
