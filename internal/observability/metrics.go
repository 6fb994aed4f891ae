package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveEnrollments prometheus.Gauge
	EnrollmentEvents  *prometheus.CounterVec
	IdentifyOutcomes  *prometheus.CounterVec
	StoryEvents       *prometheus.CounterVec
	IdentifyDuration  prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveEnrollments: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_enrollments",
			Help:      "Number of participants with an in-progress voice enrollment.",
		}),
		EnrollmentEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollment_events_total",
			Help:      "Voice enrollment events by type.",
		}, []string{"event"}),
		IdentifyOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identify_outcomes_total",
			Help:      "Speaker identification outcomes by backend and result.",
		}, []string{"backend", "outcome"}),
		StoryEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "story_events_total",
			Help:      "Story lifecycle events by type.",
		}, []string{"event"}),
		IdentifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "identify_duration_ms",
			Help:      "Speaker identification latency in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1500, 3000, 6000},
		}),
	}
}

func (m *Metrics) ObserveIdentifyDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.IdentifyDuration.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) CountEnrollmentEvent(event string) {
	if m == nil {
		return
	}
	m.EnrollmentEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) CountIdentifyOutcome(backend, outcome string) {
	if m == nil {
		return
	}
	m.IdentifyOutcomes.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) CountStoryEvent(event string) {
	if m == nil {
		return
	}
	m.StoryEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) AddActiveEnrollments(delta float64) {
	if m == nil {
		return
	}
	m.ActiveEnrollments.Add(delta)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
