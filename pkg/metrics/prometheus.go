package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	daysGenerated prometheus.Counter
	rowGroups     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	pending       *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		daysGenerated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tradesynth_days_generated_total",
				Help: "Total number of simulated days",
			},
		),
		rowGroups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesynth_row_groups_total",
				Help: "Row groups processed per pipeline stage",
			},
			[]string{"stage"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesynth_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"stage"},
		),
		pending: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradesynth_pending_row_groups",
				Help: "Row groups waiting in a reassembly buffer",
			},
			[]string{"stage"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesynth_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"operation"},
		),
	}
}

// RecordDayGenerated counts one simulated day.
func (r *Recorder) RecordDayGenerated() {
	r.daysGenerated.Inc()
}

// RecordRowGroup counts a row group handled by stage.
func (r *Recorder) RecordRowGroup(stage string) {
	r.rowGroups.WithLabelValues(stage).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(stage string) {
	r.errorsTotal.WithLabelValues(stage).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetPending reports the size of a reassembly buffer.
func (r *Recorder) SetPending(stage string, n int) {
	r.pending.WithLabelValues(stage).Set(float64(n))
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordDayGenerated()           {}
func (Nop) RecordRowGroup(string)         {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) SetPending(string, int)        {}
