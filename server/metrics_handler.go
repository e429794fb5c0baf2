package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtbexchange/router/metrics"
)

// MetricsHandler exposes the engine's cross-shard summed counters in
// Prometheus exposition format. Collect runs on a fixed interval rather
// than per-scrape since Sum() does work proportional to shard count.
func MetricsHandler(engine *metrics.Engine, namespace string, collectInterval time.Duration) http.Handler {
	exporter := metrics.NewPrometheusExporter(engine, namespace)
	if collectInterval <= 0 {
		collectInterval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(collectInterval)
		defer ticker.Stop()
		for range ticker.C {
			exporter.Collect()
		}
	}()
	return promhttp.Handler()
}
