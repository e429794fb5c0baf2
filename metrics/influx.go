package metrics

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	influxdb "github.com/vrischmann/go-metrics-influxdb"
)

// StartInfluxReporter mirrors one shard's raw rcrowley registry to InfluxDB
// on a fixed interval, for hosts that want per-shard dashboards rather than
// (or in addition to) the cross-shard Prometheus sums.
func StartInfluxReporter(registry gometrics.Registry, interval time.Duration, url, database, username, password string) {
	go influxdb.InfluxDB(registry, interval, url, database, username, password)
}
