package postauction

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/banker"
	"github.com/rtbexchange/router/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Emitted
}

func (s *recordingSink) Emit(e Emitted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []Emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Emitted, len(s.events))
	copy(out, s.events)
	return out
}

func newTestLoop(t *testing.T, bk banker.Client, sink EventSink) *Loop {
	t.Helper()
	m := metrics.NewShardMetrics()
	l := NewLoop(LoopConfig{
		Store:         NewStore(1024*1024, m),
		Buffer:        NewBuffer(200*time.Millisecond, m),
		Banker:        bk,
		Metrics:       m,
		Sink:          sink,
		WinTimeout:    100 * time.Millisecond,
		SweepInterval: 20 * time.Millisecond,
	})
	l.Start()
	t.Cleanup(l.Stop)
	return l
}

func baseRecord(id string) Record {
	now := time.Now()
	return Record{
		RequestID:           id,
		WinnerAgentID:        "agent-1",
		ExpectedPriceMicros:  3001,
		Currency:             "USD",
		Account:              "acct-1",
		AuctionTimeoutAt:     now.Add(time.Hour), // long enough not to fire mid-test unless overridden
		CreatedAt:            now,
	}
}

func TestLoopEmitsWinOnAdEventAfterHandoff(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	l.Handoff(baseRecord("req-1"))
	l.OnAdEvent(AdEvent{RequestID: "req-1", Type: EventWin, PriceMicros: 3200, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	ev := sink.all()[0]
	require.Equal(t, EventWin, ev.Type)
	require.Equal(t, "agent-1", ev.AgentID)
}

func TestLoopBuffersWinThatArrivesBeforeHandoff(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	l.OnAdEvent(AdEvent{RequestID: "req-2", Type: EventWin, PriceMicros: 3100, Timestamp: time.Now()})
	l.Handoff(baseRecord("req-2"))

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestLoopWinIsIdempotent(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	l.Handoff(baseRecord("req-3"))
	ev := AdEvent{RequestID: "req-3", Type: EventWin, PriceMicros: 3100, Timestamp: time.Now()}
	l.OnAdEvent(ev)
	l.OnAdEvent(ev)

	time.Sleep(50 * time.Millisecond)
	require.Len(t, sink.all(), 1, "a duplicate win notification must not emit twice")
}

func TestLoopReconcilesPriceIncreaseAgainstBanker(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	rec := baseRecord("req-4")
	rec.ExpectedPriceMicros = 3000
	l.Handoff(rec)
	l.OnAdEvent(AdEvent{RequestID: "req-4", Type: EventWin, PriceMicros: 3500, Timestamp: time.Now()})

	require.Eventually(t, func() bool { return bk.Committed() == 500 }, time.Second, 5*time.Millisecond)
}

func TestLoopAuctionTimeoutFiresLossAndRollsBack(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	handle, err := bk.Authorize("acct-1", 3001, "USD")
	require.NoError(t, err)

	rec := baseRecord("req-5")
	rec.ReservationHandle = handle
	rec.AuctionTimeoutAt = time.Now().Add(10 * time.Millisecond)
	rec.LossVerbosity = "full"
	l.Handoff(rec)

	require.Eventually(t, func() bool {
		for _, e := range sink.all() {
			if e.Type == EventLoss {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return bk.Rolled() == 3001 }, time.Second, 5*time.Millisecond)
}

func TestLoopWinTimeoutFiresNoDeliveryWhenUndelivered(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	l.Handoff(baseRecord("req-6"))
	l.OnAdEvent(AdEvent{RequestID: "req-6", Type: EventWin, PriceMicros: 3001, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		for _, e := range sink.all() {
			if e.Type == EventNoDelivery {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestLoopImpressionSuppressesNoDelivery(t *testing.T) {
	bk := banker.NewMock(map[string]int64{"acct-1": 1_000_000})
	sink := &recordingSink{}
	l := newTestLoop(t, bk, sink)

	l.Handoff(baseRecord("req-7"))
	l.OnAdEvent(AdEvent{RequestID: "req-7", Type: EventWin, PriceMicros: 3001, Timestamp: time.Now()})
	l.OnAdEvent(AdEvent{RequestID: "req-7", Type: EventImpression, Timestamp: time.Now()})

	time.Sleep(250 * time.Millisecond)
	for _, e := range sink.all() {
		require.NotEqual(t, EventNoDelivery, e.Type, "an impression before win-timeout must suppress no_delivery")
	}
}
