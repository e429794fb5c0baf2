// Command postauction runs post-auction correlation loops (C7+C8) as their
// own process, taking adserver win and delivery events over HTTP (spec §6).
// It has no ingress for auction handoffs from the router, so an event whose
// record never arrives stays buffered until it expires as an orphan.
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

	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/config"
	"github.com/rtbexchange/router/eventjournal"
	"github.com/rtbexchange/router/logger"
	"github.com/rtbexchange/router/metrics"
	"github.com/rtbexchange/router/postauction"
	"github.com/rtbexchange/router/server"
)

func main() {
	fs := pflag.NewFlagSet("postauction", pflag.ExitOnError)
	config.BindPostAuctionFlags(fs)
	fs.AddGoFlagSet(flag.CommandLine)
	fs.Parse(os.Args[1:])

	v := viper.New()
	v.SetConfigName("postauction")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		logger.Infof("postauction: no config file found, using flag defaults (%v)", err)
	}
	for viperKey, flagName := range map[string]string{
		"shards":          "shards",
		"auction_timeout": "auction-timeout",
		"win_timeout":     "win-timeout",
		"bidder":          "bidder",
	} {
		if err := v.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
			logger.Fatalf("postauction: binding flag %s: %v", flagName, err)
		}
	}

	cfg, err := config.LoadPostAuctionConfig(v)
	if err != nil {
		logger.Fatalf("postauction: %v", err)
	}

	printBanner()

	metricsEngine := metrics.NewEngine()

	var bankerClient banker.Client
	if url := os.Getenv("BANKER_URL"); url != "" {
		bankerClient = banker.NewHTTPClient(url, 200, 50)
	} else {
		logger.Infof("postauction: BANKER_URL not set, running against an in-memory mock banker")
		bankerClient = banker.NewMock(nil)
	}

	journal, err := eventjournal.NewSinks(nil)
	if err != nil {
		logger.Fatalf("postauction: %v", err)
	}

	loops := make([]*postauction.Loop, cfg.Shards)
	for i := 0; i < cfg.Shards; i++ {
		shardMetrics := metrics.NewShardMetrics()
		metricsEngine.Register(shardMetrics)

		store := postauction.NewStore(64*1024*1024, shardMetrics)
		buffer := postauction.NewBuffer(30*time.Second, shardMetrics)
		loop := postauction.NewLoop(postauction.LoopConfig{
			Store:      store,
			Buffer:     buffer,
			Banker:     bankerClient,
			Metrics:    shardMetrics,
			Sink:       &eventjournal.EmitAdapter{Sink: journal, OnFail: logJournalFailure},
			WinTimeout: time.Duration(cfg.WinTimeout * float64(time.Second)),
			Shard:      i,
		})
		loops[i] = loop
		loop.Start()
	}

	srv := server.New(server.Config{
		Shards: &server.Shards{
			Loops:     loops,
			ShardFunc: postauction.ShardFor,
		},
		Decoders: nil, // this process takes no bid ingress, only adserver events
		EventMap: server.EventTypeMap{"win": postauction.EventWin, "impression": postauction.EventImpression, "click": postauction.EventClick},
	})

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", server.MetricsHandler(metricsEngine, "rtbexchange_postauction", 10*time.Second))
		logger.Infof("postauction: metrics listening on :8011")
		if err := http.ListenAndServe(":8011", metricsMux); err != nil {
			logger.Errorf("postauction: metrics server: %v", err)
		}
	}()

	logger.Infof("postauction: listening on :8010")
	if err := http.ListenAndServe(":8010", srv.Handler()); err != nil {
		logger.Fatalf("postauction: %v", err)
	}
}

func logJournalFailure(e postauction.Emitted, err error) {
	logger.Warnf("postauction: event-journal record failed for %s/%s: %v", e.RequestID, e.Type, err)
}

func printBanner() {
	out := colorable.NewColorableStdout()
	fmt.Fprintln(out, colorstring.Color("[cyan]rtb-postauction[reset] starting"))
}
