package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "gateway",
			Name:      "streams_total",
			Help:      "SSE streams by outcome",
		},
		[]string{"model", "result"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "gateway",
			Name:      "tokens_total",
			Help:      "Tokens forwarded to clients",
		},
		[]string{"model"},
	)

	streamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelgate",
			Subsystem: "gateway",
			Name:      "stream_duration_seconds",
			Help:      "Lifetime of SSE streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model"},
	)

	heartbeatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelgate",
		Subsystem: "gateway",
		Name:      "heartbeats_total",
		Help:      "Keep-alive comments sent",
	})

	disconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelgate",
		Subsystem: "gateway",
		Name:      "disconnects_total",
		Help:      "Streams ended because the client went away",
	})
)

func init() {
	prometheus.MustRegister(streamsTotal, tokensTotal, streamDuration, heartbeatsTotal, disconnectsTotal)
}
