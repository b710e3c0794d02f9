package pool

import (
	"errors"
	"time"

	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "pool"

// acquireDuration is shared by all pools and partitioned by pool name.
var acquireDuration = metrics.NewHistogramVec(
	"pool_acquire_duration_seconds",
	"Time spent in successful Acquire calls",
	nil,
	metrics.PoolLabel,
)

// poolMetrics exports one pool. Gauges and counters are read from Stats at
// scrape time so the hot path only touches the acquire histogram.
type poolMetrics struct {
	pool       *Pool
	acquire    prometheus.Observer // nil unless registered
	registered bool

	maxConns    *prometheus.Desc
	conns       *prometheus.Desc
	waiting     *prometheus.Desc
	created     *prometheus.Desc
	closed      *prometheus.Desc
	acquires    *prometheus.Desc
	failed      *prometheus.Desc
	timeouts    *prometheus.Desc
	borrowed    *prometheus.Desc
	validations *prometheus.Desc
}

func newPoolMetrics(p *Pool) *poolMetrics {
	labels := prometheus.Labels{metrics.PoolLabel: p.cfg.Name}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metrics.Namespace, subsystem, name),
			help, variable, labels,
		)
	}

	m := &poolMetrics{
		pool:        p,
		maxConns:    desc("max_connections", "Configured maximum pool size"),
		conns:       desc("connections", "Open connections by state", "state"),
		waiting:     desc("waiting", "Callers parked in Acquire"),
		created:     desc("connections_created_total", "Physical connections opened"),
		closed:      desc("connections_closed_total", "Physical connections closed"),
		acquires:    desc("acquire_total", "Acquire calls"),
		failed:      desc("acquire_failed_total", "Acquire calls that returned an error"),
		timeouts:    desc("acquire_timeouts_total", "Acquire calls that timed out waiting"),
		borrowed:    desc("borrowed_total", "Leases handed out"),
		validations: desc("validation_failures_total", "Idle connections discarded after failed validation"),
	}

	if err := metrics.Registry.Register(m); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			log.WithField("pool", p.cfg.Name).Warn("pool name already exported, metrics for this pool are disabled")
		} else {
			log.WithField("pool", p.cfg.Name).WithError(err).Warn("could not register pool metrics")
		}
		return m
	}
	m.registered = true
	m.acquire = acquireDuration.WithLabelValues(p.cfg.Name)
	return m
}

// Describe implements prometheus.Collector.
func (m *poolMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.maxConns
	ch <- m.conns
	ch <- m.waiting
	ch <- m.created
	ch <- m.closed
	ch <- m.acquires
	ch <- m.failed
	ch <- m.timeouts
	ch <- m.borrowed
	ch <- m.validations
}

// Collect implements prometheus.Collector.
func (m *poolMetrics) Collect(ch chan<- prometheus.Metric) {
	s := m.pool.Stats()

	gauge := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(m.maxConns, s.MaxSize)
	gauge(m.conns, s.Idle, "idle")
	gauge(m.conns, s.Active, "active")
	gauge(m.waiting, s.Waiting)
	counter(m.created, s.TotalCreated)
	counter(m.closed, s.TotalClosed)
	counter(m.acquires, s.AcquireCount)
	counter(m.failed, s.AcquireFailed)
	counter(m.timeouts, s.TotalTimedOut)
	counter(m.borrowed, s.TotalBorrowed)
	counter(m.validations, s.ValidationFailures)
}

func (m *poolMetrics) observeAcquire(d time.Duration) {
	if m.acquire != nil {
		m.acquire.Observe(d.Seconds())
	}
}

// unregister removes the pool's series so a later pool may reuse the name.
func (m *poolMetrics) unregister() {
	if !m.registered {
		return
	}
	metrics.Registry.Unregister(m)
	acquireDuration.DeleteLabelValues(m.pool.cfg.Name)
	m.registered = false
}
