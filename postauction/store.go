package postauction

import (
	"container/heap"
	"encoding/json"
	"sync"
	"time"

	"github.com/coocood/freecache"

	"github.com/rtbexchange/router/metrics"
)

// storeTTLSeconds is freecache's own backstop expiry: generous enough that
// the store's own timer heaps always fire first in normal operation, so
// this only matters if a shard falls badly behind.
const storeTTLSeconds = 3600

// timerEntry is one (requestID, fire-at) pair tracked by a timer heap.
type timerEntry struct {
	requestID string
	at        time.Time
}

// timerHeap is a min-heap of timerEntry ordered by at, so "advance to now"
// pops entries in deadline order, earliest first, not in insertion order.
type timerHeap []timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// Store is the C7 join store (spec §4.6): a bounded request-id ->
// PostAuctionRecord map backed by freecache, whose fixed-size ring arena
// gives capacity-bounded storage with automatic LRU eviction for free, plus
// two min-heap timer wheels that drive the explicit win/auction-timeout
// firing freecache's own capacity-driven eviction can't express.
type Store struct {
	mu sync.Mutex

	cache *freecache.Cache
	live  map[string]struct{} // tracks keys actually present, for size/overflow accounting

	auctionTimers timerHeap
	winTimers     timerHeap

	lastEvacuated int64
	metrics       *metrics.ShardMetrics
}

func NewStore(capacityBytes int, m *metrics.ShardMetrics) *Store {
	return &Store{
		cache:   freecache.NewCache(capacityBytes),
		live:    make(map[string]struct{}),
		metrics: m,
	}
}

func (s *Store) encode(rec *Record) []byte {
	b, _ := json.Marshal(rec)
	return b
}

// Insert adds rec, scheduling its auction-timeout (and win-timeout, if
// already known) heap entries.
func (s *Store) Insert(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.RequestID
	s.cache.Set([]byte(key), s.encode(&rec), storeTTLSeconds)
	s.live[key] = struct{}{}
	heap.Push(&s.auctionTimers, timerEntry{requestID: key, at: rec.AuctionTimeoutAt})
	if rec.HasWon && !rec.WinTimeoutAt.IsZero() {
		heap.Push(&s.winTimers, timerEntry{requestID: key, at: rec.WinTimeoutAt})
	}
	s.countOverflow()
}

// countOverflow attributes freecache's own LRU evictions (which happen
// transparently inside Set once a segment is full) to the
// join-store-overflow counter (spec §4.6 "on overflow the oldest entry is
// evicted and counted").
func (s *Store) countOverflow() {
	evac := int64(s.cache.EvacuateCount())
	if evac > s.lastEvacuated {
		s.metrics.CountN(metrics.ReasonJoinStoreOverflow, evac-s.lastEvacuated)
		s.lastEvacuated = evac
	}
}

// Lookup returns a copy of the record stored under requestID.
func (s *Store) Lookup(requestID string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(requestID)
}

func (s *Store) lookupLocked(requestID string) (*Record, bool) {
	if _, ok := s.live[requestID]; !ok {
		return nil, false
	}
	b, err := s.cache.Get([]byte(requestID))
	if err != nil {
		delete(s.live, requestID)
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Update mutates the record stored under requestID in place via fn. If fn
// sets a non-zero WinTimeoutAt for the first time, a win-timeout heap
// entry is scheduled.
func (s *Store) Update(requestID string, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookupLocked(requestID)
	if !ok {
		return false
	}
	hadWinTimer := !rec.WinTimeoutAt.IsZero()
	fn(rec)
	s.cache.Set([]byte(requestID), s.encode(rec), storeTTLSeconds)
	if !hadWinTimer && !rec.WinTimeoutAt.IsZero() {
		heap.Push(&s.winTimers, timerEntry{requestID: requestID, at: rec.WinTimeoutAt})
	}
	return true
}

// Erase removes requestID's record entirely.
func (s *Store) Erase(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Del([]byte(requestID))
	delete(s.live, requestID)
}

// Expired is one timer-heap firing: a requestID whose auction-timeout or
// win-timeout deadline has passed.
type Expired struct {
	RequestID string
	Kind      ExpiryKind
}

type ExpiryKind int

const (
	ExpiryAuctionTimeout ExpiryKind = iota
	ExpiryWinTimeout
)

// AdvanceToNow pops every heap entry whose deadline is <= now from both
// timer wheels (spec §4.6 "advance to now"): all due auction-timeouts, then
// all due win-timeouts, each wheel in deadline order rather than insertion
// order.
// Entries for records already erased (or superseded by a later win-timeout
// schedule) are silently skipped.
func (s *Store) AdvanceToNow(now time.Time) []Expired {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Expired
	for len(s.auctionTimers) > 0 && !s.auctionTimers[0].at.After(now) {
		e := heap.Pop(&s.auctionTimers).(timerEntry)
		if _, ok := s.live[e.requestID]; !ok {
			continue
		}
		rec, ok := s.lookupLocked(e.requestID)
		if !ok || rec.HasWon {
			// Either already gone, or a win arrived since this timer was
			// scheduled: the auction-timeout no longer applies.
			continue
		}
		out = append(out, Expired{RequestID: e.requestID, Kind: ExpiryAuctionTimeout})
	}
	for len(s.winTimers) > 0 && !s.winTimers[0].at.After(now) {
		e := heap.Pop(&s.winTimers).(timerEntry)
		if _, ok := s.live[e.requestID]; !ok {
			continue
		}
		out = append(out, Expired{RequestID: e.requestID, Kind: ExpiryWinTimeout})
	}
	return out
}
