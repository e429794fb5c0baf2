package agent

import (
	"fmt"
	"regexp"

	"github.com/asaskevich/govalidator"
	"github.com/spaolacci/murmur3"

	"github.com/rtbexchange/router/errortypes"
)

// Compile pre-compiles every regex-capable IncludeExclude on the config.
// Must run once, before the config is published to the registry: the
// filter pipeline assumes Compile already happened and never compiles on
// the hot path.
func (c *Config) Compile() error {
	fields := []*IncludeExclude{&c.Host, &c.URL, &c.Language, &c.Location, &c.Exchange, &c.AdTags}
	for i := range c.Segments {
		fields = append(fields, &c.Segments[i].IncludeExclude)
	}
	for i := range c.Creatives {
		fields = append(fields, &c.Creatives[i].Language, &c.Creatives[i].Location, &c.Creatives[i].Exchange)
	}
	for _, f := range fields {
		if err := f.compile(); err != nil {
			return err
		}
	}
	return nil
}

func (ie *IncludeExclude) compile() error {
	if !ie.Regex {
		return nil
	}
	ie.includeRe = make([]*regexpWithHash, 0, len(ie.Include))
	for _, pat := range ie.Include {
		re, err := regexp.Compile(pat)
		if err != nil {
			return &errortypes.ConfigInvalid{Message: fmt.Sprintf("bad include regex %q: %v", pat, err)}
		}
		ie.includeRe = append(ie.includeRe, &regexpWithHash{re: re, hash: murmur3.Sum64([]byte(pat))})
	}
	ie.excludeRe = make([]*regexpWithHash, 0, len(ie.Exclude))
	for _, pat := range ie.Exclude {
		re, err := regexp.Compile(pat)
		if err != nil {
			return &errortypes.ConfigInvalid{Message: fmt.Sprintf("bad exclude regex %q: %v", pat, err)}
		}
		ie.excludeRe = append(ie.excludeRe, &regexpWithHash{re: re, hash: murmur3.Sum64([]byte(pat))})
	}
	return nil
}

// Validate enforces the struct-level invariants from spec §3: account is
// non-empty; bidProbability in [0,1]; exactly-one bid-control type; fixed
// CPM present iff bid-control != relay; creatives non-empty unless passive.
func (c *Config) Validate() error {
	if !govalidator.IsByteLength(c.Account, 1, 1024) {
		return &errortypes.ConfigInvalid{Message: "agent config: account must be non-empty"}
	}
	if c.BidProbability < 0 || c.BidProbability > 1 {
		return &errortypes.ConfigInvalid{Message: "agent config: bidProbability must be in [0,1]"}
	}
	switch c.BidControl {
	case BidControlRelay, BidControlRelayFixed, BidControlFixedOnlyNoRelay:
	default:
		return &errortypes.ConfigInvalid{Message: fmt.Sprintf("agent config: unknown bid-control %q", c.BidControl)}
	}
	hasFixedCPM := c.FixedCPMMicros > 0
	wantsFixedCPM := c.BidControl != BidControlRelay
	if hasFixedCPM != wantsFixedCPM {
		return &errortypes.ConfigInvalid{Message: "agent config: fixed CPM must be present iff bid-control != relay"}
	}
	if len(c.Creatives) == 0 && !c.Passive() {
		return &errortypes.ConfigInvalid{Message: "agent config: creatives list must be non-empty unless agent is passive"}
	}
	for _, cr := range c.Creatives {
		if !govalidator.IsByteLength(cr.ID, 1, 256) {
			return &errortypes.ConfigInvalid{Message: "agent config: creative id must be non-empty"}
		}
	}
	return nil
}
