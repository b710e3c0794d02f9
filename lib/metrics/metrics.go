// Package metrics holds the Prometheus collectors for dbpool.
// Every collector is registered with Registry rather than the global
// default registerer, so embedding applications decide what they expose.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "dbpool"

// PoolLabel is the label carrying the pool name on per-pool collectors.
const PoolLabel = "pool"

// DefaultLatencyBuckets covers sub-millisecond hand-offs up to the default
// 30s acquire timeout.
var DefaultLatencyBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Registry is the registry all dbpool collectors are registered with.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// NewCounter creates and registers a counter with no labels.
func NewCounter(name, help string) prometheus.Counter {
	return factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	})
}

// NewCounterVec creates and registers a counter partitioned by labels.
func NewCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewGauge creates and registers a gauge with no labels.
func NewGauge(name, help string) prometheus.Gauge {
	return factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	})
}

// NewGaugeVec creates and registers a gauge partitioned by labels.
func NewGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewHistogramVec creates and registers a histogram partitioned by labels.
// A nil buckets slice selects DefaultLatencyBuckets.
func NewHistogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = DefaultLatencyBuckets
	}
	return factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// Handler returns an http.Handler that exposes Registry in the
// Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		Registry: Registry,
	})
}

// Process-wide metrics.
var (
	// StartTime is the unix time the process started serving.
	StartTime = NewGauge("start_time_seconds", "Unix timestamp when the process started")

	// RateLimitRejections counts status-server requests refused by rate limiting.
	RateLimitRejections = NewCounter("ratelimit_rejections_total", "Total status requests rejected by rate limiting")
)

// RecordStartTime records the current time as the start time.
func RecordStartTime() {
	StartTime.SetToCurrentTime()
}
