package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecosort"

// Upload outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	uploads       *prometheus.CounterVec
	imageBytes    prometheus.Histogram
	modelDuration *prometheus.HistogramVec
	modelErrors   *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by outcome.",
		}, []string{"outcome"}),
		imageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_image_bytes",
			Help:      "Size of accepted uploaded images.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 10),
		}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of external model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"model"}),
		modelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_errors_total",
			Help:      "Failed external model calls.",
		}, []string{"model"}),
	}
	reg.MustRegister(
		m.uploads,
		m.imageBytes,
		m.modelDuration,
		m.modelErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpload counts one upload outcome
func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// ObserveImageSize records the size of an accepted image
func (m *Metrics) ObserveImageSize(n int) {
	if m == nil {
		return
	}
	m.imageBytes.Observe(float64(n))
}

// ObserveModelCall records one external model call
func (m *Metrics) ObserveModelCall(model string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if err != nil {
		m.modelErrors.WithLabelValues(model).Inc()
	}
}
