package logger

import "github.com/sirupsen/logrus"

// EventLogger is the structured, field-carrying logger used on the
// post-auction correlation path, where grep-able request-id/event-type
// fields matter more than glog's V-level filtering.
var EventLogger = logrus.New()

// WithShard returns a logger pre-populated with the owning shard number,
// so every correlation log line can be filtered by shard.
func WithShard(shard int) *logrus.Entry {
	return EventLogger.WithField("shard", shard)
}
