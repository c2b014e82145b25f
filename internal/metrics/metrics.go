package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verifier"

// Metrics records the presentation-request lifecycle.
type Metrics interface {
	RequestCreated()
	RequestRetrieved(outcome string)
	SignTime(d time.Duration)
}

// PromMetrics is the prometheus implementation of Metrics.
type PromMetrics struct {
	created   prometheus.Counter
	retrieved *prometheus.CounterVec
	signTime  prometheus.Histogram
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *PromMetrics {
	pm := &PromMetrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presentation_requests_created_total",
			Help:      "Number of presentation requests accepted.",
		}),
		retrieved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presentation_requests_retrieved_total",
			Help:      "Number of request object retrievals by outcome.",
		}, []string{"outcome"}),
		signTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_object_sign_seconds",
			Help:      "Time spent building and signing a request object.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(pm.created, pm.retrieved, pm.signTime)

	return pm
}

func (pm *PromMetrics) RequestCreated() {
	pm.created.Inc()
}

func (pm *PromMetrics) RequestRetrieved(outcome string) {
	pm.retrieved.WithLabelValues(outcome).Inc()
}

func (pm *PromMetrics) SignTime(d time.Duration) {
	pm.signTime.Observe(d.Seconds())
}

// Handler serves the collectors of g in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NoMetrics discards everything.
type NoMetrics struct{}

func (NoMetrics) RequestCreated()           {}
func (NoMetrics) RequestRetrieved(_ string) {}
func (NoMetrics) SignTime(_ time.Duration)  {}
