// Command router is the RTB exchange-facing bid router (spec §6): it
// ingests exchange bid requests, filters and dispatches them to eligible
// agents, resolves auctions, and hands winners off to the in-process
// post-auction loop. With --no-post-auction-loop, winners are not handed off
// to any loop.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/k0kubun/colorstring"
	"github.com/mattn/go-colorable"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/auction"
	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/bidder"
	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/config"
	"github.com/rtbexchange/router/eventjournal"
	"github.com/rtbexchange/router/exchangeconfig"
	"github.com/rtbexchange/router/logger"
	"github.com/rtbexchange/router/metrics"
	"github.com/rtbexchange/router/postauction"
	"github.com/rtbexchange/router/server"
)

const numShards = 4

func main() {
	fs := pflag.NewFlagSet("router", pflag.ExitOnError)
	config.BindRouterFlags(fs)
	fs.AddGoFlagSet(flag.CommandLine) // glog registers -v, -logtostderr, etc. here
	fs.Parse(os.Args[1:])

	v := viper.New()
	v.SetConfigName("router")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		logger.Infof("router: no config file found, using flag defaults (%v)", err)
	}
	bindFlag(v, "loss_seconds", fs, "loss-seconds")
	bindFlag(v, "slow_mode_timeout", fs, "slowModeTimeout")
	bindFlag(v, "slow_mode_tolerance", fs, "slowModeTolerance")
	bindFlag(v, "no_post_auction_loop", fs, "no-post-auction-loop")
	bindFlag(v, "log_uri", fs, "log-uri")
	bindFlag(v, "exchange_configuration", fs, "exchange-configuration")
	bindFlag(v, "bidder", fs, "bidder")
	bindFlag(v, "log_auctions", fs, "log-auctions")
	bindFlag(v, "log_bids", fs, "log-bids")
	bindFlag(v, "max_bid_price", fs, "max-bid-price")
	bindFlag(v, "spend_rate", fs, "spend-rate")
	bindFlag(v, "slow_mode_money_limit", fs, "slow-mode-money-limit")
	bindFlag(v, "analytics", fs, "analytics")
	bindFlag(v, "analytics_connections", fs, "analytics-connections")

	cfg, err := config.LoadRouterConfig(v)
	if err != nil {
		logger.Fatalf("router: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("router: %v", err)
	}

	printBanner()

	metricsEngine := metrics.NewEngine()

	registry := agent.NewRegistry()
	endpoints, agentConfigs, err := bidder.LoadBundle(cfg.BidderConfigFile)
	if err != nil {
		logger.Fatalf("router: loading --bidder %s: %v", cfg.BidderConfigFile, err)
	}
	for id, ac := range agentConfigs {
		if err := registry.Register(id, ac); err != nil {
			logger.Fatalf("router: registering agent %s: %v", id, err)
		}
	}

	exchanges := exchangeconfig.Registry(exchangeconfig.NewDummyRegistry())
	if cfg.ExchangeConfigFile != "" {
		fileExchanges, err := exchangeconfig.NewFileRegistry(cfg.ExchangeConfigFile)
		if err != nil {
			logger.Fatalf("router: loading --exchange-configuration %s: %v", cfg.ExchangeConfigFile, err)
		}
		exchanges = fileExchanges
	}

	blacklist := agent.NewBlacklistStore()
	bankerClient := resolveBankerClient()

	journal, err := eventjournal.NewSinks(cfg.LogURIs)
	if err != nil {
		logger.Fatalf("router: %v", err)
	}

	engines := make([]*auction.Engine, numShards)
	loops := make([]*postauction.Loop, numShards)

	for i := 0; i < numShards; i++ {
		shardMetrics := metrics.NewShardMetrics()
		metricsEngine.Register(shardMetrics)

		var slowMode *auction.SlowMode
		if cfg.SlowModeMoneyLimit.Micros > 0 {
			slowMode = auction.NewSlowMode(
				time.Duration(cfg.SlowModeToleranceSecs)*time.Second,
				cfg.SlowModeMoneyLimit,
				shardMetrics,
			)
			go pollHealth(slowMode, bankerClient, time.Duration(cfg.SlowModeTimeoutSecs)*time.Second)
		}

		store := postauction.NewStore(64*1024*1024, shardMetrics)
		buffer := postauction.NewBuffer(30*time.Second, shardMetrics)
		loop := postauction.NewLoop(postauction.LoopConfig{
			Store:    store,
			Buffer:   buffer,
			Banker:   bankerClient,
			Metrics:  shardMetrics,
			Sink:     &eventjournal.EmitAdapter{Sink: journal, OnFail: logJournalFailure},
			Registry: registry,
			Shard:    i,
		})
		loops[i] = loop

		var handoff auction.HandoffFunc
		if !cfg.NoPostAuctionLoop {
			handoff = loop.Handoff
		}

		// Each engine registers itself as its channel's sole response
		// handler, so every shard gets a channel of its own.
		channel := bidder.NewHTTPChannel(endpoints)
		engines[i] = auction.NewEngine(auction.EngineConfig{
			Registry:          registry,
			Blacklist:         blacklist,
			Channel:           channel,
			Banker:            bankerClient,
			Metrics:           shardMetrics,
			Handoff:           handoff,
			SafetyMargin:      50 * time.Millisecond,
			MaxBidPriceMicros: cfg.MaxBidPriceMicros,
			LossSeconds:       time.Duration(cfg.LossSeconds * float64(time.Second)),
			SlowMode:          slowMode,
		})
		go engines[i].Run()
		loop.Start()
	}

	srv := server.New(server.Config{
		Shards: &server.Shards{
			Engines:   engines,
			Loops:     loops,
			ShardFunc: postauction.ShardFor,
		},
		Decoders:          map[string]server.ExchangeDecoder{"json": bidrequest.JSONDecoder{}},
		EventMap:          server.EventTypeMap{"win": postauction.EventWin, "impression": postauction.EventImpression, "click": postauction.EventClick},
		RequestsPerSecond: 0,
		Exchanges:         exchanges,
	})

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", server.MetricsHandler(metricsEngine, "rtbexchange_router", 10*time.Second))
		logger.Infof("router: metrics listening on :8001")
		if err := http.ListenAndServe(":8001", metricsMux); err != nil {
			logger.Errorf("router: metrics server: %v", err)
		}
	}()

	logger.Infof("router: listening on :8000")
	if err := http.ListenAndServe(":8000", srv.Handler()); err != nil {
		logger.Fatalf("router: %v", err)
	}
}

// bindFlag maps a pflag (CLI-style, dashed or camelCase) onto the viper key
// its mapstructure tag expects, so file config and flag overrides resolve
// to the same field regardless of naming convention.
func bindFlag(v *viper.Viper, viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := v.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		logger.Fatalf("router: binding flag %s: %v", flagName, err)
	}
}

func resolveBankerClient() banker.Client {
	if url := os.Getenv("BANKER_URL"); url != "" {
		return banker.NewHTTPClient(url, 200, 50)
	}
	logger.Infof("router: BANKER_URL not set, running against an in-memory mock banker")
	return banker.NewMock(nil)
}

// pollHealth feeds the banker's reachability into slow-mode on a fixed
// interval (spec §4.3 "subscribes to a health signal", supplemented from
// original_source/rtbkit/core/monitor's poll-not-push model).
func pollHealth(sm *auction.SlowMode, b banker.Client, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		_, err := b.Authorize("__health__", 0, "USD")
		sm.Observe(err == nil, time.Now())
	}
}

func logJournalFailure(e postauction.Emitted, err error) {
	logger.Warnf("router: event-journal record failed for %s/%s: %v", e.RequestID, e.Type, err)
}

func printBanner() {
	out := colorable.NewColorableStdout()
	fmt.Fprintln(out, colorstring.Color("[green]rtb-router[reset] starting"))
}
