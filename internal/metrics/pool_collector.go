package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"feedback-app/internal/dbpool"
)

type poolCollector struct {
	pool PoolStatter

	state        *prometheus.Desc
	total        *prometheus.Desc
	idle         *prometheus.Desc
	acquired     *prometheus.Desc
	constructing *prometheus.Desc
	max          *prometheus.Desc
	acquires     *prometheus.Desc
	emptyAcq     *prometheus.Desc
	canceledAcq  *prometheus.Desc
	acquireWait  *prometheus.Desc
}

func newPoolCollector(name string, p PoolStatter) *poolCollector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", metric), help, nil, labels)
	}

	return &poolCollector{
		pool:         p,
		state:        desc("state", "Pool lifecycle state (0 uninitialized, 1 initializing, 2 ready, 3 closing, 4 closed)."),
		total:        desc("connections", "Open physical connections."),
		idle:         desc("idle_connections", "Connections in the free set."),
		acquired:     desc("acquired_connections", "Connections currently borrowed."),
		constructing: desc("constructing_connections", "Connections being opened."),
		max:          desc("max_connections", "Upper bound on open connections."),
		acquires:     desc("acquires_total", "Successful acquires."),
		emptyAcq:     desc("empty_acquires_total", "Acquires that had to wait or open a connection."),
		canceledAcq:  desc("canceled_acquires_total", "Acquires that gave up before getting a connection."),
		acquireWait:  desc("acquire_wait_seconds_total", "Cumulative time spent in successful acquires."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.state, c.total, c.idle, c.acquired, c.constructing, c.max,
		c.acquires, c.emptyAcq, c.canceledAcq, c.acquireWait,
	} {
		ch <- d
	}
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	gauge(c.state, float64(s.State))
	gauge(c.total, float64(s.Total))
	gauge(c.idle, float64(s.Idle))
	gauge(c.acquired, float64(s.Acquired))
	gauge(c.constructing, float64(s.Constructing))
	gauge(c.max, float64(s.Max))
	counter(c.acquires, float64(s.AcquireCount))
	counter(c.emptyAcq, float64(s.EmptyAcquireCount))
	counter(c.canceledAcq, float64(s.CanceledAcquireCount))
	counter(c.acquireWait, s.AcquireDuration.Seconds())
}

var _ prometheus.Collector = (*poolCollector)(nil)
var _ PoolStatter = (*dbpool.Pool)(nil)
