package agent

import (
	"encoding/json"
	"os"

	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/config"
)

// document is the on-disk shape of one AgentConfig, validated against
// config.ValidateAgentConfigDocument before being reshaped into Config.
// FixedCPMMicros is a pointer so "absent" and "present but zero" are
// distinguishable, matching the invariant that fixed CPM must be present
// iff bid-control != relay.
type document struct {
	Account            string   `json:"account"`
	ExternalID         string   `json:"externalId"`
	Test               bool     `json:"test"`
	BidProbability     float64  `json:"bidProbability"`
	MinTimeAvailableMs float64  `json:"minTimeAvailableMs"`
	MaxInFlight        int      `json:"maxInFlight"`
	RoundRobinGroup    string   `json:"roundRobinGroup"`
	RoundRobinWeight   int      `json:"roundRobinWeight"`
	RequiredUserIDs    []string `json:"requiredUserIds"`
	Host               IncludeExclude `json:"host"`
	URL                IncludeExclude `json:"url"`
	Language           IncludeExclude `json:"language"`
	Location           IncludeExclude `json:"location"`
	Exchange           IncludeExclude `json:"exchange"`
	FoldPositions      []string       `json:"foldPositions"`
	Segments           []SegmentFilter `json:"segments"`
	AdTags             IncludeExclude  `json:"adTags"`
	HourOfWeek         []int           `json:"hourOfWeek"` // set bit indices
	Partition          UserPartition   `json:"partition"`
	Creatives          []Creative      `json:"creatives"`
	Blacklist          Blacklist       `json:"blacklist"`
	BidControl         string          `json:"bidControl"`
	FixedCPMMicros     *int64          `json:"fixedCpmMicros"`
	Augmentations      []string        `json:"augmentations"`
	VisitChannels      []string        `json:"visitChannels"`
	BidResultVerbosity BidResultVerbosity `json:"bidResultVerbosity"`
	Provider           map[string]any  `json:"provider"`
}

// LoadConfig reads, schema-validates, and reshapes one AgentConfig
// document from disk. The registry still runs Validate/Compile on the
// result before publishing it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfigBytes(data)
}

// LoadConfigBytes is LoadConfig for an already-in-memory document, e.g.
// one agent's entry inside the --bidder bundle file.
func LoadConfigBytes(data []byte) (*Config, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	if err := config.ValidateAgentConfigDocument(generic); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return fromDocument(doc), nil
}

func fixedCPMMicros(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func fromDocument(doc document) *Config {
	c := &Config{
		Account:            doc.Account,
		ExternalID:         doc.ExternalID,
		Test:               doc.Test,
		BidProbability:     doc.BidProbability,
		MinTimeAvailableMs: doc.MinTimeAvailableMs,
		MaxInFlight:        doc.MaxInFlight,
		RoundRobinGroup:    doc.RoundRobinGroup,
		RoundRobinWeight:   doc.RoundRobinWeight,
		Host:               doc.Host,
		URL:                doc.URL,
		Language:           doc.Language,
		Location:           doc.Location,
		Exchange:           doc.Exchange,
		Segments:           doc.Segments,
		AdTags:             doc.AdTags,
		Partition:          doc.Partition,
		Creatives:          doc.Creatives,
		Blacklist:          doc.Blacklist,
		BidControl:         BidControl(doc.BidControl),
		FixedCPMMicros:     fixedCPMMicros(doc.FixedCPMMicros),
		Augmentations:      doc.Augmentations,
		BidResultVerbosity: doc.BidResultVerbosity,
		Provider:           doc.Provider,
	}

	for _, s := range doc.RequiredUserIDs {
		c.RequiredUserIDs = append(c.RequiredUserIDs, bidrequest.UserIDSource(s))
	}

	if len(doc.FoldPositions) > 0 {
		c.FoldPositions = make(map[string]bool, len(doc.FoldPositions))
		for _, p := range doc.FoldPositions {
			c.FoldPositions[p] = true
		}
	}

	for _, idx := range doc.HourOfWeek {
		if idx >= 0 && idx < len(c.HourOfWeek) {
			c.HourOfWeek[idx] = true
		}
	}

	if len(doc.VisitChannels) > 0 {
		c.VisitChannels = make(map[string]bool, len(doc.VisitChannels))
		for _, ch := range doc.VisitChannels {
			c.VisitChannels[ch] = true
		}
	}

	return c
}
