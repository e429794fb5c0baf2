// Package config holds the router's and post-auction binary's startup
// configuration: a viper-loaded file plus pflag command-line overrides,
// matching spec §6's two CLI surfaces.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rtbexchange/router/errortypes"
)

// RouterConfig is the `--flag` surface of the router binary (spec §6).
type RouterConfig struct {
	LossSeconds           float64  `mapstructure:"loss_seconds"`
	SlowModeTimeoutSecs   int      `mapstructure:"slow_mode_timeout"`
	SlowModeToleranceSecs int      `mapstructure:"slow_mode_tolerance"`
	NoPostAuctionLoop     bool     `mapstructure:"no_post_auction_loop"`
	LogURIs               []string `mapstructure:"log_uri"`
	ExchangeConfigFile    string   `mapstructure:"exchange_configuration"`
	BidderConfigFile      string   `mapstructure:"bidder"`
	LogAuctions           bool     `mapstructure:"log_auctions"`
	LogBids               bool     `mapstructure:"log_bids"`
	MaxBidPriceMicros     int64    `mapstructure:"max_bid_price"`
	SpendRate             Amount   `mapstructure:"-"`
	SlowModeMoneyLimit    Amount   `mapstructure:"-"`
	Analytics             bool     `mapstructure:"analytics"`
	AnalyticsConnections  int      `mapstructure:"analytics_connections"`
}

// Validate enforces the one cross-flag invariant spec §6 names: a single
// bid must never be able to exceed the per-second slow-mode ceiling.
func (c RouterConfig) Validate() error {
	if c.SlowModeMoneyLimit.Micros > 0 && c.MaxBidPriceMicros > c.SlowModeMoneyLimit.Micros {
		return &errortypes.ConfigInvalid{Message: fmt.Sprintf(
			"max-bid-price (%d) must be <= slow-mode-money-limit (%s)", c.MaxBidPriceMicros, c.SlowModeMoneyLimit)}
	}
	return nil
}

// PostAuctionConfig is the `--flag` surface of the post-auction binary.
type PostAuctionConfig struct {
	Shards           int     `mapstructure:"shards"`
	AuctionTimeout   float64 `mapstructure:"auction_timeout"`
	WinTimeout       float64 `mapstructure:"win_timeout"`
	BidderConfigFile string  `mapstructure:"bidder"`
}

// LoadRouterConfig reads defaults from a viper-managed file (if any is
// bound) and returns the struct for flag overrides to be layered on top.
// Amount fields are decoded by hand: the vendored mapstructure version has
// no hook for "string into a custom struct", so spend_rate and
// slow_mode_money_limit are parsed from their raw string form directly.
func LoadRouterConfig(v *viper.Viper) (*RouterConfig, error) {
	var c RouterConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, &errortypes.ConfigInvalid{Message: err.Error()}
	}
	if err := decodeAmount(v, "spend_rate", &c.SpendRate); err != nil {
		return nil, err
	}
	if err := decodeAmount(v, "slow_mode_money_limit", &c.SlowModeMoneyLimit); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeAmount(v *viper.Viper, key string, dst *Amount) error {
	raw := v.GetString(key)
	if raw == "" {
		return nil
	}
	a, err := ParseAmount(raw)
	if err != nil {
		return &errortypes.ConfigInvalid{Message: err.Error()}
	}
	*dst = a
	return nil
}

func LoadPostAuctionConfig(v *viper.Viper) (*PostAuctionConfig, error) {
	var c PostAuctionConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, &errortypes.ConfigInvalid{Message: err.Error()}
	}
	if c.Shards <= 0 {
		c.Shards = 1
	}
	return &c, nil
}
