package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	runtimeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "runtime",
			Name:      "requests_total",
			Help:      "Runtime calls by kind and result",
		},
		[]string{"model", "kind", "result"},
	)

	runtimeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelgate",
			Subsystem: "runtime",
			Name:      "request_duration_seconds",
			Help:      "Duration of runtime calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model", "kind"},
	)

	runtimeTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "runtime",
			Name:      "tokens_total",
			Help:      "Streamed tokens forwarded to callers",
		},
		[]string{"model"},
	)

	runtimeInflightStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelgate",
			Subsystem: "runtime",
			Name:      "inflight_streams",
			Help:      "Streams currently holding an admission slot",
		},
		[]string{"model"},
	)

	runtimeReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "runtime",
			Name:      "reloads_total",
			Help:      "Hot reload attempts by result",
		},
		[]string{"model", "result"},
	)
)

func init() {
	prometheus.MustRegister(runtimeRequestsTotal, runtimeRequestDuration, runtimeTokensTotal, runtimeInflightStreams, runtimeReloadsTotal)
}

// resultLabel maps a call outcome to a low-cardinality label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsDraining(err):
		return "draining"
	case IsTimeout(err):
		return "timeout"
	case IsBadInput(err):
		return "bad_input"
	default:
		return "error"
	}
}
