package metrics

import (
	"MarketSignal/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	sectionMissing *prometheus.CounterVec
	signals        *prometheus.CounterVec
	aiPredictions  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		sectionMissing: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsignal_section_missing_total",
				Help: "Feature snapshot sections that came back empty",
			},
			[]string{"section"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsignal_signals_total",
				Help: "Computed signals by symbol and direction",
			},
			[]string{"symbol", "signal"},
		),
		aiPredictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsignal_ai_predictions_total",
				Help: "AI overlay predictions by source",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsignal_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSectionMissing(section string) {
	r.sectionMissing.WithLabelValues(section).Inc()
}

func (r *Recorder) RecordSignal(symbol string, signal models.SignalType) {
	r.signals.WithLabelValues(symbol, string(signal)).Inc()
}

func (r *Recorder) RecordAIPrediction(source string) {
	r.aiPredictions.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
