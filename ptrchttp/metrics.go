package ptrchttp

import (
	"github.com/peterbourgon/ptrc"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exports the stats of a session as Prometheus metrics.
type MetricsCollector struct {
	session *ptrc.Session

	running   *prometheus.Desc
	events    *prometheus.Desc
	capacity  *prometheus.Desc
	active    *prometheus.Desc
	acquired  *prometheus.Desc
	released  *prometheus.Desc
	exhausted *prometheus.Desc
}

var _ prometheus.Collector = (*MetricsCollector)(nil)

// NewMetricsCollector returns a collector for the session.
func NewMetricsCollector(session *ptrc.Session) *MetricsCollector {
	kind := []string{"kind"}
	return &MetricsCollector{
		session:   session,
		running:   prometheus.NewDesc("ptrc_session_running", "1 if a session is running, 0 otherwise.", nil, nil),
		events:    prometheus.NewDesc("ptrc_session_events_total", "Events captured by the running session.", nil, nil),
		capacity:  prometheus.NewDesc("ptrc_pool_capacity", "Handle pool capacity.", kind, nil),
		active:    prometheus.NewDesc("ptrc_pool_active", "Handles currently in use.", kind, nil),
		acquired:  prometheus.NewDesc("ptrc_pool_acquired_total", "Handles acquired from the pool.", kind, nil),
		released:  prometheus.NewDesc("ptrc_pool_released_total", "Handles returned to the pool.", kind, nil),
		exhausted: prometheus.NewDesc("ptrc_pool_exhausted_total", "Acquisitions that failed because the pool was empty.", kind, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.events
	ch <- c.capacity
	ch <- c.active
	ch <- c.acquired
	ch <- c.released
	ch <- c.exhausted
}

// Collect implements prometheus.Collector.
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.session.Stats()

	var running float64
	if stats.Running {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running)

	if !stats.Running {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(stats.Events))

	for _, pool := range []struct {
		kind  ptrc.Kind
		stats ptrc.PoolStats
	}{
		{ptrc.KindSpan, stats.Spans},
		{ptrc.KindCounter, stats.Counters},
	} {
		kind := pool.kind.String()
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(pool.stats.Capacity), kind)
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(pool.stats.Active), kind)
		ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(pool.stats.Counters.Acquire), kind)
		ch <- prometheus.MustNewConstMetric(c.released, prometheus.CounterValue, float64(pool.stats.Counters.Release), kind)
		ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(pool.stats.Counters.Exhausted), kind)
	}
}
