// Package metrics provides Prometheus metrics for ingestion and question answering.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	// Ingestion
	DocumentsIngestedTotal *prometheus.CounterVec
	UnitsIngestedTotal     *prometheus.CounterVec

	// Question answering
	AnswersTotal      *prometheus.CounterVec
	RetrievedUnits    prometheus.Histogram
	KeyRotationsTotal *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
}

// Default is registered with the global Prometheus registry and served at /metrics.
var Default = New(prometheus.DefaultRegisterer)

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.DocumentsIngestedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypartner_documents_ingested_total",
			Help: "Total number of documents processed by the ingestion pipeline",
		},
		[]string{"course", "outcome"},
	)

	m.UnitsIngestedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypartner_units_ingested_total",
			Help: "Total number of units written to a vector index",
		},
		[]string{"course"},
	)

	m.AnswersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypartner_answers_total",
			Help: "Total number of questions answered, by outcome",
		},
		[]string{"course", "outcome"},
	)

	m.RetrievedUnits = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studypartner_retrieved_units",
			Help:    "Number of units retrieved per question",
			Buckets: []float64{0, 1, 3, 5, 10, 15, 25, 50},
		},
	)

	m.KeyRotationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypartner_key_rotations_total",
			Help: "Total number of API key rotations",
		},
		[]string{"status"},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studypartner_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	return m
}

// ObserveStage records the time elapsed since start for stage. A nil receiver
// is a no-op.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordIngest counts one finished document. A nil receiver is a no-op.
func (m *Metrics) RecordIngest(course, outcome string, units int) {
	if m == nil {
		return
	}
	m.DocumentsIngestedTotal.WithLabelValues(course, outcome).Inc()
	if units > 0 {
		m.UnitsIngestedTotal.WithLabelValues(course).Add(float64(units))
	}
}

// RecordAnswer counts one answered question. A nil receiver is a no-op.
func (m *Metrics) RecordAnswer(course, outcome string, retrieved int) {
	if m == nil {
		return
	}
	m.AnswersTotal.WithLabelValues(course, outcome).Inc()
	m.RetrievedUnits.Observe(float64(retrieved))
}

// RecordRotation counts one key rotation attempt. A nil receiver is a no-op.
func (m *Metrics) RecordRotation(status string) {
	if m == nil {
		return
	}
	m.KeyRotationsTotal.WithLabelValues(status).Inc()
}
