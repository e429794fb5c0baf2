package postauction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/metrics"
)

func TestStoreInsertAndLookup(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	rec := Record{RequestID: "req-1", WinnerAgentID: "agent-1", AuctionTimeoutAt: time.Now().Add(time.Hour)}
	s.Insert(rec)

	got, ok := s.Lookup("req-1")
	require.True(t, ok)
	require.Equal(t, "agent-1", got.WinnerAgentID)
}

func TestStoreLookupMissing(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	_, ok := s.Lookup("missing")
	require.False(t, ok)
}

func TestStoreUpdateMutatesInPlace(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	s.Insert(Record{RequestID: "req-1", AuctionTimeoutAt: time.Now().Add(time.Hour)})

	ok := s.Update("req-1", func(r *Record) { r.HasWon = true; r.ActualPriceMicros = 500 })
	require.True(t, ok)

	got, _ := s.Lookup("req-1")
	require.True(t, got.HasWon)
	require.Equal(t, int64(500), got.ActualPriceMicros)
}

func TestStoreEraseRemovesRecord(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	s.Insert(Record{RequestID: "req-1", AuctionTimeoutAt: time.Now().Add(time.Hour)})
	s.Erase("req-1")

	_, ok := s.Lookup("req-1")
	require.False(t, ok)
}

func TestStoreAdvanceToNowFiresAuctionTimeoutInOrder(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	now := time.Now()
	s.Insert(Record{RequestID: "req-1", AuctionTimeoutAt: now.Add(10 * time.Millisecond)})
	s.Insert(Record{RequestID: "req-2", AuctionTimeoutAt: now.Add(20 * time.Millisecond)})

	expired := s.AdvanceToNow(now.Add(15 * time.Millisecond))
	require.Len(t, expired, 1)
	require.Equal(t, "req-1", expired[0].RequestID)
	require.Equal(t, ExpiryAuctionTimeout, expired[0].Kind)

	expired = s.AdvanceToNow(now.Add(25 * time.Millisecond))
	require.Len(t, expired, 1)
	require.Equal(t, "req-2", expired[0].RequestID)
}

func TestStoreAdvanceToNowSkipsWonRecordsForAuctionTimeout(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	now := time.Now()
	s.Insert(Record{RequestID: "req-1", AuctionTimeoutAt: now.Add(10 * time.Millisecond)})
	s.Update("req-1", func(r *Record) { r.HasWon = true })

	expired := s.AdvanceToNow(now.Add(20 * time.Millisecond))
	require.Empty(t, expired, "a won auction must not fire an auction-timeout expiry")
}

func TestStoreAdvanceToNowFiresWinTimeoutOnceScheduled(t *testing.T) {
	s := NewStore(1024*1024, metrics.NewShardMetrics())
	now := time.Now()
	s.Insert(Record{RequestID: "req-1", AuctionTimeoutAt: now.Add(time.Hour)})
	s.Update("req-1", func(r *Record) { r.HasWon = true; r.WinTimeoutAt = now.Add(10 * time.Millisecond) })

	expired := s.AdvanceToNow(now.Add(20 * time.Millisecond))
	require.Len(t, expired, 1)
	require.Equal(t, ExpiryWinTimeout, expired[0].Kind)
}
