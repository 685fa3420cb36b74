package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a snapshot of the database pool. It keeps this package free
// of pgxpool.
type PoolStats struct {
	Total, Idle, Acquired, Max int32
	EmptyAcquires              int64
}

type DBPoolStatFunc func() PoolStats

type dbPoolCollector struct {
	stats DBPoolStatFunc

	total, idle, acquired, max, emptyAcquires *prometheus.Desc
}

func NewDBPoolCollector(stats DBPoolStatFunc) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("mergeflow_db_pool_"+name, help, nil, nil)
	}
	return &dbPoolCollector{
		stats:         stats,
		total:         desc("total_conns", "Connections currently in the pool."),
		idle:          desc("idle_conns", "Idle connections in the pool."),
		acquired:      desc("acquired_conns", "Connections checked out of the pool."),
		max:           desc("max_conns", "Configured pool size."),
		emptyAcquires: desc("empty_acquires_total", "Acquires that had to wait for a connection."),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.max
	ch <- c.emptyAcquires
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.Total))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(s.EmptyAcquires))
}
