package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a snapshot of connection pool counters.
type PoolStats struct {
	Acquired        int32
	Idle            int32
	Total           int32
	Max             int32
	AcquireCount    int64
	AcquireSeconds  float64
	CanceledAcquire int64
	EmptyAcquire    int64
}

func pgxStats(pool *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{
			Acquired:        s.AcquiredConns(),
			Idle:            s.IdleConns(),
			Total:           s.TotalConns(),
			Max:             s.MaxConns(),
			AcquireCount:    s.AcquireCount(),
			AcquireSeconds:  s.AcquireDuration().Seconds(),
			CanceledAcquire: s.CanceledAcquireCount(),
			EmptyAcquire:    s.EmptyAcquireCount(),
		}
	}
}

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(PoolStats) float64
}

// PoolStatsCollector exports pool statistics on every scrape.
type PoolStatsCollector struct {
	stats   func() PoolStats
	service string
	metrics []poolMetric
}

// NewPoolStatsCollector returns a collector reading stats from pool.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return newPoolStatsCollector(pgxStats(pool), service)
}

func newPoolStatsCollector(stats func() PoolStats, service string) *PoolStatsCollector {
	gauge := func(name, help string, v func(PoolStats) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, []string{"service"}, nil), prometheus.GaugeValue, v}
	}
	counter := func(name, help string, v func(PoolStats) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, []string{"service"}, nil), prometheus.CounterValue, v}
	}
	return &PoolStatsCollector{
		stats:   stats,
		service: service,
		metrics: []poolMetric{
			gauge("db_pool_acquired_connections", "Connections currently checked out.",
				func(s PoolStats) float64 { return float64(s.Acquired) }),
			gauge("db_pool_idle_connections", "Connections currently idle.",
				func(s PoolStats) float64 { return float64(s.Idle) }),
			gauge("db_pool_total_connections", "Connections currently open.",
				func(s PoolStats) float64 { return float64(s.Total) }),
			gauge("db_pool_max_connections", "Configured pool size.",
				func(s PoolStats) float64 { return float64(s.Max) }),
			counter("db_pool_acquire_count_total", "Successful connection acquires.",
				func(s PoolStats) float64 { return float64(s.AcquireCount) }),
			counter("db_pool_acquire_duration_seconds_total", "Time spent acquiring connections.",
				func(s PoolStats) float64 { return s.AcquireSeconds }),
			counter("db_pool_canceled_acquire_count_total", "Acquires canceled by their context.",
				func(s PoolStats) float64 { return float64(s.CanceledAcquire) }),
			counter("db_pool_empty_acquire_count_total", "Acquires that waited for a free connection.",
				func(s PoolStats) float64 { return float64(s.EmptyAcquire) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s), c.service)
	}
}

// RegisterPoolMetrics registers a collector for pool on reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
