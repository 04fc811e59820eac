package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.RecordFire(core.SourceTimer)
	m.RecordDisposition(core.StatusCompleted)
	m.RecordPublish(core.PlatformTwitter, true, 10*time.Millisecond)
	m.SetArmedTimers(1)
	m.RecordSweepError()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"publisher_scheduler_fires_total",
		"publisher_scheduler_dispositions_total",
		"publisher_scheduler_armed_timers",
		"publisher_scheduler_sweep_errors_total",
		"publisher_platform_publishes_total",
		"publisher_platform_publish_duration_seconds",
	}, names)
}

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordFire(core.SourceTimer)
	m.RecordFire(core.SourceTimer)
	m.RecordFire(core.SourceSweep)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FiresTotal.WithLabelValues("timer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FiresTotal.WithLabelValues("sweep")))

	m.RecordDisposition(core.StatusFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispositionsTotal.WithLabelValues("FAILED")))

	m.RecordPublish(core.PlatformLinkedIn, false, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishesTotal.WithLabelValues("LINKEDIN", ResultFailure)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PublishesTotal.WithLabelValues("LINKEDIN", ResultSuccess)))

	m.SetArmedTimers(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ArmedTimers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordFire(core.SourceSweep)
		m.RecordDisposition(core.StatusPending)
		m.RecordPublish(core.PlatformInstagram, true, time.Millisecond)
		m.SetArmedTimers(3)
		m.RecordSweepError()
	})
}
