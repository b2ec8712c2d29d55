// Package metrics exposes Prometheus metrics for the refresh pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the breadth engine.
type Metrics struct {
	RefreshesTotal  *prometheus.CounterVec // labels: result
	RefreshDuration prometheus.Histogram
	LatestBreadth   prometheus.Gauge
	LastRefreshTime prometheus.Gauge
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breadth_refreshes_total",
			Help: "Refresh passes, labeled by result (ok/error).",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breadth_refresh_duration_seconds",
			Help:    "Wall time of a refresh pass.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		LatestBreadth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "breadth_latest_percentage_above",
			Help: "Latest percentage of the universe above its short-term EMA.",
		}),
		LastRefreshTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "breadth_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		}),
	}
	reg.MustRegister(m.RefreshesTotal, m.RefreshDuration, m.LatestBreadth, m.LastRefreshTime)
	return m
}
