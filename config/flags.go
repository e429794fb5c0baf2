package config

import "github.com/spf13/pflag"

// BindRouterFlags registers the router binary's flag surface (spec §6) on
// fs and returns the struct the parsed values land in.
func BindRouterFlags(fs *pflag.FlagSet) *RouterConfig {
	c := &RouterConfig{}
	fs.Float64Var(&c.LossSeconds, "loss-seconds", 15, "seconds to wait for a win notification before emitting a loss")
	fs.IntVar(&c.SlowModeTimeoutSecs, "slowModeTimeout", 1, "seconds between health-monitor polls")
	fs.IntVar(&c.SlowModeToleranceSecs, "slowModeTolerance", 5, "seconds of consecutive unhealthy polls before entering slow mode")
	fs.BoolVar(&c.NoPostAuctionLoop, "no-post-auction-loop", false, "disable handoff of winners to the in-process post-auction loop; they are not handed off anywhere else")
	fs.StringArrayVar(&c.LogURIs, "log-uri", nil, "event-journal sink URI(s), repeatable")
	fs.StringVar(&c.ExchangeConfigFile, "exchange-configuration", "", "path to exchange connector configuration")
	fs.StringVar(&c.BidderConfigFile, "bidder", "", "path to bidder transport configuration")
	fs.BoolVar(&c.LogAuctions, "log-auctions", false, "log full auction detail")
	fs.BoolVar(&c.LogBids, "log-bids", false, "log every bid received")
	fs.Int64Var(&c.MaxBidPriceMicros, "max-bid-price", 0, "router-wide maximum bid price, in micros")
	fs.Var(&amountFlag{value: &c.SpendRate}, "spend-rate", "amount expression, e.g. 100000USD/1M")
	fs.Var(&amountFlag{value: &c.SlowModeMoneyLimit}, "slow-mode-money-limit", "amount expression, e.g. 100000USD/1M")
	fs.BoolVar(&c.Analytics, "analytics", false, "enable analytics event emission")
	fs.IntVar(&c.AnalyticsConnections, "analytics-connections", 4, "concurrent analytics sink connections")
	return c
}

// BindPostAuctionFlags registers the post-auction binary's flag surface.
func BindPostAuctionFlags(fs *pflag.FlagSet) *PostAuctionConfig {
	c := &PostAuctionConfig{}
	fs.IntVar(&c.Shards, "shards", 1, "number of independent post-auction shards")
	fs.Float64Var(&c.AuctionTimeout, "auction-timeout", 15, "seconds to wait for a win before emitting a loss (parsed, but not passed to the loops)")
	fs.Float64Var(&c.WinTimeout, "win-timeout", 60, "seconds to wait for delivery after a win before no-delivery")
	fs.StringVar(&c.BidderConfigFile, "bidder", "", "path to bidder transport configuration")
	return c
}
