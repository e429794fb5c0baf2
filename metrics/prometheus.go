package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter periodically copies an Engine's summed counters into a
// prometheus.GaugeVec, since the spec's reason counters are monotonic sums
// across shards rather than native prometheus Counters owned by this process
// (each shard's own rcrowley counter already plays that role).
type PrometheusExporter struct {
	engine *Engine
	gauge  *prometheus.GaugeVec
}

func NewPrometheusExporter(engine *Engine, namespace string) *PrometheusExporter {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reason_total",
		Help:      "Count of router events by reason, summed across shards.",
	}, []string{"reason"})
	prometheus.MustRegister(gauge)
	return &PrometheusExporter{engine: engine, gauge: gauge}
}

// Collect copies the latest sums into the gauge vector. Call on a ticker;
// it is not wired to prometheus.Collector directly because Sum() does work
// proportional to shard count and shouldn't run on every scrape if scrapes
// are frequent.
func (p *PrometheusExporter) Collect() {
	for reason, total := range p.engine.Sum() {
		p.gauge.WithLabelValues(string(reason)).Set(float64(total))
	}
}
