// Package prom exports cache.Model metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/pagecache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	lookups  *prometheus.CounterVec
	fetches  prometheus.Counter
	failures prometheus.Counter
	stale    prometheus.Counter
	size     prometheus.Gauge
	segments prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "lookups_total",
				Help:        "GetItem calls by result (hit or miss)",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "page_fetches_total",
			Help:        "Page fetches requested from the fetcher",
			ConstLabels: constLabels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "page_fetch_errors_total",
			Help:        "Page fetches that failed",
			ConstLabels: constLabels,
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "stale_segments_total",
			Help:        "Segments dropped because their query was superseded",
			ConstLabels: constLabels,
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_items",
			Help:        "Estimated length of the sequence",
			ConstLabels: constLabels,
		}),
		segments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cached_segments",
			Help:        "Number of cached pages",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.lookups, a.fetches, a.failures, a.stale, a.size, a.segments)
	return a
}

// Hit counts a lookup served from cache.
func (a *Adapter) Hit() { a.lookups.WithLabelValues("hit").Inc() }

// Miss counts a lookup answered with the placeholder.
func (a *Adapter) Miss() { a.lookups.WithLabelValues("miss").Inc() }

// Fetch counts a page request.
func (a *Adapter) Fetch() { a.fetches.Inc() }

// FetchError counts a failed page fetch.
func (a *Adapter) FetchError() { a.failures.Inc() }

// Stale counts a dropped stale segment.
func (a *Adapter) Stale() { a.stale.Inc() }

// Size updates the size and segment gauges.
func (a *Adapter) Size(total, segments int) {
	a.size.Set(float64(total))
	a.segments.Set(float64(segments))
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
