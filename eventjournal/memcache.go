package eventjournal

import (
	"github.com/bradfitz/gomemcache/memcache"

	"github.com/rtbexchange/router/postauction"
)

// memcacheTTLSeconds mirrors RedisSink's retention window.
const memcacheTTLSeconds = 24 * 60 * 60

// MemcacheSink journals events through a memcache cluster, for deployments
// that already run one as a shared cache tier.
type MemcacheSink struct {
	client *memcache.Client
}

func NewMemcacheSink(servers ...string) *MemcacheSink {
	return &MemcacheSink{client: memcache.New(servers...)}
}

func (s *MemcacheSink) Record(e postauction.Emitted) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:        journalKey(e),
		Value:      payload,
		Expiration: memcacheTTLSeconds,
	})
}

func (s *MemcacheSink) Close() error { return nil }
