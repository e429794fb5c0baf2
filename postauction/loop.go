package postauction

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/logger"
	"github.com/rtbexchange/router/metrics"
	"github.com/rtbexchange/router/util/task"
)

// channelFor maps an emitted event type to the visit-channel name an agent
// must have subscribed to in order to receive it (supplemented feature,
// original_source/rtbkit: per-agent visit/event channel subscription).
func channelFor(t EventType) string { return string(t) }

// EventSink is where the loop's correlated outcomes go (spec §4.7: "emit a
// 'win'/'impression'/... event downstream"). The eventjournal package
// supplies the production implementation; tests supply an in-memory one.
type EventSink interface {
	Emit(Emitted)
}

// Loop is C8: one shard's post-auction correlation state machine, driven
// by handoffs from the auction engine, adserver events, and a periodic
// sweep of the join store's timer wheels.
type Loop struct {
	store    *Store
	buffer   *Buffer
	banker   banker.Client
	metrics  *metrics.ShardMetrics
	sink     EventSink
	registry *agent.Registry // optional; nil means no channel gating

	winTimeout time.Duration
	sweep      *task.TickerTask
	log        *logrus.Entry
}

type LoopConfig struct {
	Store         *Store
	Buffer        *Buffer
	Banker        banker.Client
	Metrics       *metrics.ShardMetrics
	Sink          EventSink
	Registry      *agent.Registry
	WinTimeout    time.Duration
	SweepInterval time.Duration
	Shard         int
}

func NewLoop(cfg LoopConfig) *Loop {
	winTimeout := cfg.WinTimeout
	if winTimeout <= 0 {
		winTimeout = 15 * time.Second
	}
	l := &Loop{
		store: cfg.Store, buffer: cfg.Buffer, banker: cfg.Banker, metrics: cfg.Metrics,
		sink: cfg.Sink, registry: cfg.Registry, winTimeout: winTimeout,
		log: logger.WithShard(cfg.Shard),
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	l.sweep = task.NewTickerTask(interval, sweepRunner{l: l})
	return l
}

// subscribed reports whether agentID should receive events of type t. With
// no registry configured, every agent receives every event (legacy/test
// default); otherwise an agent missing from the registry receives nothing,
// one with no AgentConfig.VisitChannels receives every event, and one that
// listed channels only receives those.
func (l *Loop) subscribed(agentID string, t EventType) bool {
	if l.registry == nil {
		return true
	}
	cfg, err := l.registry.Lookup(agentID)
	if err != nil {
		return false
	}
	if len(cfg.VisitChannels) == 0 {
		return true
	}
	return cfg.VisitChannels[channelFor(t)]
}

// Start begins the periodic timer-wheel sweep (spec §4.6 "advance to now").
func (l *Loop) Start() { l.sweep.Start() }

// Stop halts the sweep; in-flight records are left exactly as they are.
func (l *Loop) Stop() { l.sweep.Stop() }

// sweepRunner adapts Loop.runSweep to the util/task.Runner interface.
type sweepRunner struct{ l *Loop }

func (r sweepRunner) Run() error {
	r.l.runSweep(time.Now())
	return nil
}

// Handoff is step 1 of the correlation algorithm (spec §4.7): insert the
// freshly resolved auction's record, then immediately replay any events
// that had to be buffered because they raced ahead of this handoff
// (scenario S5).
func (l *Loop) Handoff(rec Record) {
	l.store.Insert(rec)
	if events, ok := l.buffer.Take(rec.RequestID); ok {
		for _, ev := range events {
			l.apply(rec.RequestID, ev)
		}
	}
}

// OnAdEvent is the adserver connector's single entry point for wins,
// impressions, and clicks (spec §4.7 steps 2-4).
func (l *Loop) OnAdEvent(ev AdEvent) {
	l.apply(ev.RequestID, ev)
}

func (l *Loop) apply(requestID string, ev AdEvent) {
	switch ev.Type {
	case EventWin:
		l.applyWin(requestID, ev)
	case EventImpression:
		l.applyDelivery(requestID, ev, EventImpression, func(r *Record) bool { return r.ImpressionSeen },
			func(r *Record) { r.ImpressionSeen = true })
	case EventClick:
		l.applyDelivery(requestID, ev, EventClick, func(r *Record) bool { return r.ClickSeen },
			func(r *Record) { r.ClickSeen = true })
	}
}

// applyWin is step 2: lookup, buffer-if-absent, else mark won, reconcile
// the actual win price against the engine's expected clear price, commit,
// and emit exactly one "win" event.
func (l *Loop) applyWin(requestID string, ev AdEvent) {
	rec, ok := l.store.Lookup(requestID)
	if !ok {
		l.buffer.Add(ev)
		return
	}
	if rec.HasWon {
		return // duplicate win notification; already handled (property 7)
	}

	winTimeoutAt := ev.Timestamp.Add(l.winTimeout)
	l.store.Update(requestID, func(r *Record) {
		r.HasWon = true
		r.ActualPriceMicros = ev.PriceMicros
		r.WinTimeoutAt = winTimeoutAt
	})

	l.reconcilePrice(rec, ev.PriceMicros)

	l.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"agent_id":   rec.WinnerAgentID,
		"event":      EventWin,
		"price":      ev.PriceMicros,
	}).Info("win correlated")

	if l.subscribed(rec.WinnerAgentID, EventWin) {
		l.sink.Emit(Emitted{
			RequestID:   requestID,
			AgentID:     rec.WinnerAgentID,
			Type:        EventWin,
			PriceMicros: ev.PriceMicros,
			Currency:    rec.Currency,
			Timestamp:   ev.Timestamp,
		})
	}
	l.metrics.Count(metrics.ReasonWin)
}

// reconcilePrice true-ups the committed spend when the adserver's actual
// win price is higher than the router's expected clear price (spec §4.7
// step 2 "update the authoritative win-price, commit to C6"). A lower actual
// price is not refunded.
func (l *Loop) reconcilePrice(rec *Record, actualMicros int64) {
	delta := actualMicros - rec.ExpectedPriceMicros
	if delta <= 0 {
		return
	}
	handle, err := l.banker.Authorize(rec.Account, delta, rec.Currency)
	if err != nil {
		logger.Warnf("post-auction: could not true-up win price for %s: %v", rec.RequestID, err)
		return
	}
	if err := l.banker.Commit(handle, delta); err != nil {
		logger.Warnf("post-auction: could not commit win-price true-up for %s: %v", rec.RequestID, err)
	}
}

// applyDelivery is steps 3/4 (impression, click): lookup, buffer-if-absent,
// else emit at most once per event type (spec §8 property 7).
func (l *Loop) applyDelivery(requestID string, ev AdEvent, typ EventType, seen func(*Record) bool, mark func(*Record)) {
	rec, ok := l.store.Lookup(requestID)
	if !ok {
		l.buffer.Add(ev)
		return
	}
	if seen(rec) {
		return
	}
	l.store.Update(requestID, mark)
	if l.subscribed(rec.WinnerAgentID, typ) {
		l.sink.Emit(Emitted{RequestID: requestID, AgentID: rec.WinnerAgentID, Type: typ, Timestamp: ev.Timestamp})
	}
	if typ == EventImpression {
		l.metrics.Count(metrics.ReasonImpression)
	} else {
		l.metrics.Count(metrics.ReasonClick)
	}
}

// runSweep advances both timer wheels and finalizes whatever they fire
// (spec §4.7 steps 5-6).
func (l *Loop) runSweep(now time.Time) {
	for _, exp := range l.store.AdvanceToNow(now) {
		switch exp.Kind {
		case ExpiryAuctionTimeout:
			l.onAuctionTimeout(exp.RequestID, now)
		case ExpiryWinTimeout:
			l.onWinTimeout(exp.RequestID, now)
		}
	}
}

// onAuctionTimeout is step 5: no win arrived before lossSeconds elapsed.
func (l *Loop) onAuctionTimeout(requestID string, now time.Time) {
	rec, ok := l.store.Lookup(requestID)
	if !ok {
		return
	}
	if rec.LossVerbosity != agent.VerbosityNone && l.subscribed(rec.WinnerAgentID, EventLoss) {
		l.sink.Emit(Emitted{RequestID: requestID, AgentID: rec.WinnerAgentID, Type: EventLoss,
			PriceMicros: rec.ExpectedPriceMicros, Currency: rec.Currency, Timestamp: now})
	}
	if rec.ReservationHandle != "" {
		if err := l.banker.Rollback(rec.ReservationHandle); err != nil {
			logger.Warnf("post-auction: rollback failed for %s: %v", requestID, err)
		}
	}
	l.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"agent_id":   rec.WinnerAgentID,
		"event":      EventLoss,
	}).Info("auction timed out with no win")
	l.metrics.Count(metrics.ReasonLoss)
	l.store.Erase(requestID)
}

// onWinTimeout is step 6: won, but no delivery event arrived in time.
func (l *Loop) onWinTimeout(requestID string, now time.Time) {
	rec, ok := l.store.Lookup(requestID)
	if !ok {
		return
	}
	if !rec.ImpressionSeen && !rec.ClickSeen {
		if l.subscribed(rec.WinnerAgentID, EventNoDelivery) {
			l.sink.Emit(Emitted{RequestID: requestID, AgentID: rec.WinnerAgentID, Type: EventNoDelivery, Timestamp: now})
		}
		l.metrics.Count(metrics.ReasonNoDelivery)
	}
	l.store.Erase(requestID)
}
