// Package metrics defines the Prometheus instruments of the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for recognition, resolution and the meal
// ledger. A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - mealtrack_recognition_duration_seconds - recognition process wall time
//   - mealtrack_recognition_failures_total{reason} - exit, parse, canceled
//   - mealtrack_resolved_labels_total{result} - matched, unmatched
//   - mealtrack_meal_commits_total{result} - ok, error
//   - mealtrack_meal_entries_total - committed meal entries
//   - mealtrack_http_requests_total{method,status} - served requests
type Metrics struct {
	RecognitionDuration prometheus.Histogram
	RecognitionFailures *prometheus.CounterVec
	ResolvedLabels      *prometheus.CounterVec
	MealCommits         *prometheus.CounterVec
	MealEntries         prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecognitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mealtrack_recognition_duration_seconds",
			Help:    "Wall time of one recognition process run",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		RecognitionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mealtrack_recognition_failures_total",
			Help: "Failed recognition runs by reason",
		}, []string{"reason"}),
		ResolvedLabels: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mealtrack_resolved_labels_total",
			Help: "Detection labels looked up in the catalog by result",
		}, []string{"result"}),
		MealCommits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mealtrack_meal_commits_total",
			Help: "Meal commit calls by result",
		}, []string{"result"}),
		MealEntries: f.NewCounter(prometheus.CounterOpts{
			Name: "mealtrack_meal_entries_total",
			Help: "Meal entries written to the ledger",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mealtrack_http_requests_total",
			Help: "HTTP requests served by method and status",
		}, []string{"method", "status"}),
	}
}

// ObserveRecognition records one recognition run. reason is empty on success.
func (m *Metrics) ObserveRecognition(d time.Duration, reason string) {
	if m == nil {
		return
	}
	m.RecognitionDuration.Observe(d.Seconds())
	if reason != "" {
		m.RecognitionFailures.WithLabelValues(reason).Inc()
	}
}

// ObserveResolved records the outcome of one label lookup.
func (m *Metrics) ObserveResolved(matched bool) {
	if m == nil {
		return
	}
	result := "unmatched"
	if matched {
		result = "matched"
	}
	m.ResolvedLabels.WithLabelValues(result).Inc()
}

// ObserveCommit records one meal commit and the number of entries written.
func (m *Metrics) ObserveCommit(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MealCommits.WithLabelValues("error").Inc()
		return
	}
	m.MealCommits.WithLabelValues("ok").Inc()
	m.MealEntries.Add(float64(entries))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, status).Inc()
}
