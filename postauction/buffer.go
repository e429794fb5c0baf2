package postauction

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rtbexchange/router/errortypes"
	"github.com/rtbexchange/router/logger"
	"github.com/rtbexchange/router/metrics"
)

// Buffer holds adserver events that arrived before their auction's handoff
// reached the join store (spec §4.7 "Buffering of early events"): a short
// TTL map keyed by request-id, whose natural expiry (via go-cache's
// janitor) means the event never found a home and is counted as an
// orphan. Explicit, successful Take()s are excluded from that count.
type Buffer struct {
	cache   *gocache.Cache
	metrics *metrics.ShardMetrics

	mu          sync.Mutex
	suppressing map[string]bool
}

func NewBuffer(ttl time.Duration, m *metrics.ShardMetrics) *Buffer {
	b := &Buffer{
		cache:       gocache.New(ttl, ttl/2),
		metrics:     m,
		suppressing: make(map[string]bool),
	}
	b.cache.OnEvicted(b.onEvicted)
	return b
}

func (b *Buffer) onEvicted(key string, value any) {
	b.mu.Lock()
	if b.suppressing[key] {
		delete(b.suppressing, key)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	events, _ := value.([]AdEvent)
	for _, ev := range events {
		b.metrics.Count(metrics.ReasonOrphanEvent)
		logger.Warnf("%s", (&errortypes.OrphanEvent{RequestID: key, EventType: string(ev.Type)}).Error())
	}
}

// Add buffers ev until Take retrieves it or its TTL expires.
func (b *Buffer) Add(ev AdEvent) {
	if existing, found := b.cache.Get(ev.RequestID); found {
		list := existing.([]AdEvent)
		b.cache.Set(ev.RequestID, append(list, ev), gocache.DefaultExpiration)
		return
	}
	b.cache.Set(ev.RequestID, []AdEvent{ev}, gocache.DefaultExpiration)
}

// Take removes and returns every buffered event for requestID, if any.
func (b *Buffer) Take(requestID string) ([]AdEvent, bool) {
	b.mu.Lock()
	b.suppressing[requestID] = true
	b.mu.Unlock()

	v, found := b.cache.Get(requestID)
	if !found {
		b.mu.Lock()
		delete(b.suppressing, requestID)
		b.mu.Unlock()
		return nil, false
	}
	b.cache.Delete(requestID)
	return v.([]AdEvent), true
}
