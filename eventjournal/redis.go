package eventjournal

import (
	"time"

	"github.com/go-redis/redis"

	"github.com/rtbexchange/router/postauction"
)

// RedisSink journals events as compressed blobs under a per-event key,
// with a generous TTL so a slow consumer still has a window to drain them.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSink(addr string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		return nil, err
	}
	return &RedisSink{client: client, ttl: 24 * time.Hour}, nil
}

func (s *RedisSink) Record(e postauction.Emitted) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	return s.client.Set(journalKey(e), payload, s.ttl).Err()
}

func (s *RedisSink) Close() error { return s.client.Close() }
