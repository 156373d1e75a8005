package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thriftsniff",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thriftsniff",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	decodedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thriftsniff",
			Subsystem: "decoder",
			Name:      "messages_total",
			Help:      "Payloads whose message header was decoded.",
		},
		[]string{"variant", "envelope", "kind", "method"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thriftsniff",
			Subsystem: "decoder",
			Name:      "errors_total",
			Help:      "Payloads that failed to decode, by stage and error class.",
		},
		[]string{"stage", "class"},
	)
	decodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thriftsniff",
			Subsystem: "decoder",
			Name:      "duration_seconds",
			Help:      "Time spent decoding one payload.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"variant"},
	)
	payloadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thriftsniff",
			Subsystem: "capture",
			Name:      "payload_bytes",
			Help:      "Size of captured TCP payloads.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		},
	)
	sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thriftsniff",
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Events a sink failed to deliver.",
		},
		[]string{"sink"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			decodedMessages, decodeErrors, decodeDuration,
			payloadBytes, sinkErrors,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordPayload observes one captured payload and how long it took to
// decode. variant is "unknown" when detection failed.
func RecordPayload(variant string, size int, duration time.Duration) {
	RegisterMetrics()
	payloadBytes.Observe(float64(size))
	decodeDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

func RecordMessage(variant, envelope, kind, method string) {
	RegisterMetrics()
	decodedMessages.WithLabelValues(variant, envelope, kind, method).Inc()
}

func RecordDecodeError(stage, class string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(stage, class).Inc()
}

func RecordSinkError(sink string) {
	RegisterMetrics()
	sinkErrors.WithLabelValues(sink).Inc()
}
