package postauction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/metrics"
)

func TestBufferAddThenTake(t *testing.T) {
	b := NewBuffer(time.Second, metrics.NewShardMetrics())
	b.Add(AdEvent{RequestID: "req-1", Type: EventWin, PriceMicros: 100})
	b.Add(AdEvent{RequestID: "req-1", Type: EventImpression})

	events, ok := b.Take("req-1")
	require.True(t, ok)
	require.Len(t, events, 2)
}

func TestBufferTakeMissingReturnsFalse(t *testing.T) {
	b := NewBuffer(time.Second, metrics.NewShardMetrics())
	_, ok := b.Take("missing")
	require.False(t, ok)
}

func TestBufferTakeIsOneShot(t *testing.T) {
	b := NewBuffer(time.Second, metrics.NewShardMetrics())
	b.Add(AdEvent{RequestID: "req-1", Type: EventWin})
	b.Take("req-1")

	_, ok := b.Take("req-1")
	require.False(t, ok)
}

func TestBufferExpiryCountsOrphan(t *testing.T) {
	m := metrics.NewShardMetrics()
	b := NewBuffer(20*time.Millisecond, m)
	b.Add(AdEvent{RequestID: "req-1", Type: EventClick})

	require.Eventually(t, func() bool {
		return m.Snapshot()[metrics.ReasonOrphanEvent] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBufferSuccessfulTakeDoesNotCountOrphan(t *testing.T) {
	m := metrics.NewShardMetrics()
	b := NewBuffer(20*time.Millisecond, m)
	b.Add(AdEvent{RequestID: "req-1", Type: EventClick})
	b.Take("req-1")

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int64(0), m.Snapshot()[metrics.ReasonOrphanEvent])
}
