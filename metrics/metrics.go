// Package metrics implements the per-shard counters the spec calls for in
// §5: "Metrics counters are per-shard and summed on read." Each shard owns
// one *ShardMetrics, shared by that shard's engine, post-auction loop and
// their helper goroutines, and the process-wide Engine fans a read out to
// every shard and adds the results together.
package metrics

import (
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Reason labels a rejection, drop, or other countable event. Using a typed
// string keeps call sites self-documenting without an explosion of methods.
type Reason string

const (
	ReasonExchange           Reason = "filter.exchange"
	ReasonHourOfWeek         Reason = "filter.hour_of_week"
	ReasonPartition          Reason = "filter.partition"
	ReasonRequiredUserID      Reason = "filter.required_user_id"
	ReasonSegment            Reason = "filter.segment"
	ReasonHost               Reason = "filter.host"
	ReasonURL                Reason = "filter.url"
	ReasonLanguage           Reason = "filter.language"
	ReasonLocation           Reason = "filter.location"
	ReasonFoldPosition       Reason = "filter.fold_position"
	ReasonAdTag              Reason = "filter.ad_tag"
	ReasonNoCompatibleSpots  Reason = "filter.no_compatible_spots"
	ReasonBlacklist          Reason = "filter.blacklist"

	ReasonBidLate            Reason = "bid.late"
	ReasonBidClipped         Reason = "bid.clipped"
	ReasonBidMalformed       Reason = "bid.malformed"
	ReasonAgentUnknown       Reason = "bid.agent_unknown"

	ReasonSlowModeSkip       Reason = "slow_mode.skip"
	ReasonSlowModeEnter      Reason = "slow_mode.enter"
	ReasonSlowModeExit       Reason = "slow_mode.exit"

	ReasonBankerInsufficient Reason = "banker.insufficient"
	ReasonBankerUnavailable  Reason = "banker.unavailable"

	ReasonJoinStoreOverflow  Reason = "post_auction.join_store_overflow"
	ReasonOrphanEvent        Reason = "post_auction.orphan_event"
	ReasonWin                Reason = "post_auction.win"
	ReasonLoss               Reason = "post_auction.loss"
	ReasonNoDelivery         Reason = "post_auction.no_delivery"
	ReasonImpression         Reason = "post_auction.impression"
	ReasonClick              Reason = "post_auction.click"

	ReasonDownstreamQueueFull Reason = "downstream.queue_full"
)

// ShardMetrics is one shard's counter set. The shard's engine, post-auction
// loop and their helper goroutines all count into it, so the lazily filled
// counter map is guarded by mu; the rcrowley counters themselves are atomics.
type ShardMetrics struct {
	mu       sync.Mutex
	registry gometrics.Registry
	counters map[Reason]gometrics.Counter
	bidPrice gometrics.Histogram
	auctionLatency gometrics.Timer
}

func NewShardMetrics() *ShardMetrics {
	registry := gometrics.NewRegistry()
	return &ShardMetrics{
		registry:       registry,
		counters:       make(map[Reason]gometrics.Counter),
		bidPrice:       gometrics.GetOrRegisterHistogram("bid.price_micros", registry, gometrics.NewUniformSample(1028)),
		auctionLatency: gometrics.GetOrRegisterTimer("auction.latency", registry),
	}
}

func (s *ShardMetrics) counter(r Reason) gometrics.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[r]
	if !ok {
		c = gometrics.GetOrRegisterCounter(string(r), s.registry)
		s.counters[r] = c
	}
	return c
}

// Count increments a reason counter by one. Called only from the owning shard.
func (s *ShardMetrics) Count(r Reason) { s.counter(r).Inc(1) }

// CountN increments a reason counter by n.
func (s *ShardMetrics) CountN(r Reason, n int64) { s.counter(r).Inc(n) }

// ObserveBidPrice records a resolved auction's clear price, in micros.
func (s *ShardMetrics) ObserveBidPrice(micros int64) { s.bidPrice.Update(micros) }

// ObserveAuctionLatency records the wall-clock time from dispatch to resolution.
func (s *ShardMetrics) ObserveAuctionLatency(nanos int64) { s.auctionLatency.Update(time.Duration(nanos)) }

// Registry exposes the shard's raw rcrowley registry for reporters that want
// per-shard detail (e.g. the InfluxDB reporter) rather than a cross-shard sum.
func (s *ShardMetrics) Registry() gometrics.Registry { return s.registry }

// Snapshot reads every counter's current value. Safe to call from any
// goroutine; the counter map is read under mu and rcrowley/go-metrics
// counters are atomics under the hood.
func (s *ShardMetrics) Snapshot() map[Reason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Reason]int64, len(s.counters))
	for r, c := range s.counters {
		out[r] = c.Count()
	}
	return out
}

// Engine aggregates counters across every shard's ShardMetrics, summing on
// read rather than sharing a single contended counter (spec §5).
type Engine struct {
	mu     sync.RWMutex
	shards []*ShardMetrics
}

func NewEngine() *Engine { return &Engine{} }

// Register adds a shard's metrics to the set the Engine sums over. Called
// once per shard at startup, never concurrently with Sum.
func (e *Engine) Register(s *ShardMetrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shards = append(e.shards, s)
}

// Sum adds every shard's current counter values together.
func (e *Engine) Sum() map[Reason]int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := make(map[Reason]int64)
	for _, s := range e.shards {
		for r, v := range s.Snapshot() {
			total[r] += v
		}
	}
	return total
}
