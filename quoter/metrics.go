package quoter

import "github.com/prometheus/client_golang/prometheus"

// Operation labels.
const (
	opExactIn         = "exact_in"
	opExactOut        = "exact_out"
	opZap             = "zap"
	opAddLiquidity    = "add_liquidity"
	opRemoveLiquidity = "remove_liquidity"
)

// Metrics holds the prometheus collectors of a Service.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	stateBlock prometheus.Gauge
	stateAge   prometheus.Gauge
}

// NewMetrics creates and registers the quoter collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ammquote",
			Subsystem: "quoter",
			Name:      "requests_total",
			Help:      "Quote and preview requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ammquote",
			Subsystem: "quoter",
			Name:      "request_duration_seconds",
			Help:      "Time taken to answer a quote or preview.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"operation"}),
		stateBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ammquote",
			Subsystem: "quoter",
			Name:      "state_block_number",
			Help:      "Block number of the snapshot quotes are served from.",
		}),
		stateAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ammquote",
			Subsystem: "quoter",
			Name:      "state_updated_timestamp_seconds",
			Help:      "Unix time at which the current snapshot was installed.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.stateBlock, m.stateAge)
	return m
}
