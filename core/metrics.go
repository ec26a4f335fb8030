package core

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

type Metrics struct {
	registry metrics.Registry

	processed  metrics.Counter
	skipped    metrics.Counter
	executed   metrics.Counter
	reconnects metrics.Counter
	lastBlock  metrics.Gauge

	handleLatency metrics.Timer
}

func NewMetrics() *Metrics {
	registry := metrics.NewRegistry()

	return &Metrics{
		registry:      registry,
		processed:     metrics.NewRegisteredCounter("logs.processed", registry),
		skipped:       metrics.NewRegisteredCounter("logs.skipped", registry),
		executed:      metrics.NewRegisteredCounter("proposals.executed", registry),
		reconnects:    metrics.NewRegisteredCounter("client.reconnects", registry),
		lastBlock:     metrics.NewRegisteredGauge("logs.last_block", registry),
		handleLatency: metrics.NewRegisteredTimer("logs.handle_latency", registry),
	}
}

// Snapshot returns counter and gauge values keyed by metric name.
func (m *Metrics) Snapshot() map[string]int64 {
	res := make(map[string]int64)
	m.registry.Each(func(name string, i interface{}) {
		switch metric := i.(type) {
		case metrics.Counter:
			res[name] = metric.Count()
		case metrics.Gauge:
			res[name] = metric.Value()
		case metrics.Timer:
			res[name+".count"] = metric.Count()
			res[name+".max_ns"] = metric.Max()
		}
	})
	return res
}

func (m *Metrics) observe(start time.Time, block uint64) {
	m.processed.Inc(1)
	m.lastBlock.Update(int64(block))
	m.handleLatency.UpdateSince(start)
}
