// Package metrics exposes crawl activity as Prometheus metrics.
//
// A Collector is a crawler.Observer. Each Collector owns its registry, so
// two crawls in one process never share counters.
package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/sitemaps/internal/crawler"
)

// Collector records crawl events.
type Collector struct {
	registry *prometheus.Registry

	fetchesTotal *prometheus.CounterVec
	inFlight     prometheus.Gauge
	maxInFlight  prometheus.Gauge
	discovered   prometheus.Counter

	current atomic.Int64
	peak    atomic.Int64
}

var _ crawler.Observer = (*Collector)(nil)

// New creates a Collector with a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemaps_fetches_total",
				Help: "Total number of finished fetches by outcome.",
			},
			[]string{"outcome"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitemaps_inflight_fetches",
				Help: "Current number of fetches in flight.",
			},
		),
		maxInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitemaps_max_inflight_fetches",
				Help: "Highest number of fetches in flight at once.",
			},
		),
		discovered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sitemaps_discovered_urls",
				Help: "Number of URLs admitted to the crawl.",
			},
		),
	}
}

// URLDiscovered implements crawler.Observer.
func (c *Collector) URLDiscovered(string) {
	c.discovered.Inc()
}

// FetchStarted implements crawler.Observer.
func (c *Collector) FetchStarted(string) {
	n := c.current.Add(1)
	c.inFlight.Inc()
	for {
		peak := c.peak.Load()
		if n <= peak {
			return
		}
		if c.peak.CompareAndSwap(peak, n) {
			c.maxInFlight.Set(float64(n))
			return
		}
	}
}

// FetchFinished implements crawler.Observer.
func (c *Collector) FetchFinished(_ string, outcome crawler.Outcome) {
	c.fetchesTotal.WithLabelValues(string(outcome)).Inc()
	c.inFlight.Dec()
	c.current.Add(-1)
}

// MaxInFlight returns the highest number of simultaneous fetches seen.
func (c *Collector) MaxInFlight() int {
	return int(c.peak.Load())
}

// Registry returns the registry holding the crawl metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteFile writes the metrics to path in the text exposition format.
// The file is replaced atomically.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
