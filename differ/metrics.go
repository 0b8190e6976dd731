package differ

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors of a StateDiffer.
type Metrics struct {
	diffDuration *prometheus.HistogramVec
	changes      *prometheus.CounterVec
}

// NewMetrics creates and registers the differ collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		diffDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ammquote",
			Subsystem: "differ",
			Name:      "diff_duration_seconds",
			Help:      "Time taken to diff two consecutive snapshots.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ammquote",
			Subsystem: "differ",
			Name:      "changes_total",
			Help:      "Number of changed entries found by the differ, by component.",
		}, []string{"component"}),
	}
	reg.MustRegister(m.diffDuration, m.changes)
	return m
}
