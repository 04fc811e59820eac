// Package metrics provides Prometheus instrumentation for the scheduler and
// platform publishers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

const (
	// Namespace is the namespace for all publisher metrics.
	Namespace = "publisher"

	schedulerSubsystem = "scheduler"
	platformSubsystem  = "platform"
)

// Publish results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scheduler metrics
	FiresTotal        *prometheus.CounterVec
	DispositionsTotal *prometheus.CounterVec
	ArmedTimers       prometheus.Gauge
	SweepErrorsTotal  prometheus.Counter

	// Platform metrics
	PublishesTotal         *prometheus.CounterVec
	PublishDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers all publisher metrics on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initSchedulerMetrics(factory)
	m.initPlatformMetrics(factory)

	return m
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.FiresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "fires_total",
			Help:      "Total number of attempts that won the PENDING to PROCESSING guard",
		},
		[]string{"source"},
	)

	m.DispositionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "dispositions_total",
			Help:      "Total number of attempt dispositions by resulting status",
		},
		[]string{"status"},
	)

	m.ArmedTimers = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "armed_timers",
			Help:      "Number of in-process timers currently armed",
		},
	)

	m.SweepErrorsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "sweep_errors_total",
			Help:      "Total number of per-job errors encountered by the sweep",
		},
	)
}

func (m *Metrics) initPlatformMetrics(factory promauto.Factory) {
	m.PublishesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: platformSubsystem,
			Name:      "publishes_total",
			Help:      "Total number of platform publish calls by result",
		},
		[]string{"platform", "result"},
	)

	m.PublishDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: platformSubsystem,
			Name:      "publish_duration_seconds",
			Help:      "Duration of platform publish calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"platform"},
	)
}

// RecordFire counts an attempt that entered PROCESSING.
func (m *Metrics) RecordFire(source core.FireSource) {
	if m == nil {
		return
	}
	m.FiresTotal.WithLabelValues(string(source)).Inc()
}

// RecordDisposition counts the status an attempt resolved to.
func (m *Metrics) RecordDisposition(status core.Status) {
	if m == nil {
		return
	}
	m.DispositionsTotal.WithLabelValues(string(status)).Inc()
}

// RecordPublish records one platform call.
func (m *Metrics) RecordPublish(platform core.Platform, succeeded bool, d time.Duration) {
	if m == nil {
		return
	}
	result := ResultFailure
	if succeeded {
		result = ResultSuccess
	}
	m.PublishesTotal.WithLabelValues(string(platform), result).Inc()
	m.PublishDurationSeconds.WithLabelValues(string(platform)).Observe(d.Seconds())
}

// SetArmedTimers reports the registry size.
func (m *Metrics) SetArmedTimers(n int) {
	if m == nil {
		return
	}
	m.ArmedTimers.Set(float64(n))
}

// RecordSweepError counts a per-job sweep failure.
func (m *Metrics) RecordSweepError() {
	if m == nil {
		return
	}
	m.SweepErrorsTotal.Inc()
}
