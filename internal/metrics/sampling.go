// Package metrics provides Prometheus collectors for the acquisition pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Error stages for read_errors_total.
const (
	StageRead    = "read"
	StageConvert = "convert"
)

// SamplingMetrics contains Prometheus metrics for the sampling and
// reporting tasks. A nil *SamplingMetrics is valid and records nothing.
type SamplingMetrics struct {
	cyclesTotal       prometheus.Counter
	readErrorsTotal   *prometheus.CounterVec
	lastValue         prometheus.Gauge
	bufferPosition    prometheus.Gauge
	calibrationActive prometheus.Gauge
	cycleDuration     prometheus.Histogram
	reportsTotal      *prometheus.CounterVec
}

// NewSamplingMetrics creates and registers the sampling metrics.
func NewSamplingMetrics(registry prometheus.Registerer) (*SamplingMetrics, error) {
	m := &SamplingMetrics{
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adc_sampling_cycles_total",
			Help: "Total number of sampling cycles that stored a value",
		}),
		readErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adc_sampling_errors_total",
			Help: "Total number of sampling cycles skipped because of an error",
		}, []string{"stage"}), // stage: read, convert
		lastValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adc_last_value_tenth_millivolts",
			Help: "Most recently stored calibrated value in 0.1 mV units",
		}),
		bufferPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adc_buffer_write_position",
			Help: "Slot index of the most recent buffer write",
		}),
		calibrationActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adc_calibration_active",
			Help: "1 if a calibration scheme is active, 0 in raw passthrough mode",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adc_sampling_cycle_duration_seconds",
			Help:    "Time spent in one sampling cycle, excluding the period delay",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8), // 10us to ~160ms
		}),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adc_reports_total",
			Help: "Total number of consumer reports by status",
		}, []string{"status"}), // status: success, error, empty
	}

	collectors := []prometheus.Collector{
		m.cyclesTotal,
		m.readErrorsTotal,
		m.lastValue,
		m.bufferPosition,
		m.calibrationActive,
		m.cycleDuration,
		m.reportsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordSample records a successful cycle.
func (m *SamplingMetrics) RecordSample(value int32, position int, took time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.lastValue.Set(float64(value))
	m.bufferPosition.Set(float64(position))
	m.cycleDuration.Observe(took.Seconds())
}

// RecordError records a skipped cycle.
func (m *SamplingMetrics) RecordError(stage string) {
	if m == nil {
		return
	}
	m.readErrorsTotal.WithLabelValues(stage).Inc()
}

func (m *SamplingMetrics) SetCalibrationActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.calibrationActive.Set(1)
	} else {
		m.calibrationActive.Set(0)
	}
}

func (m *SamplingMetrics) RecordReport(status string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(status).Inc()
}
