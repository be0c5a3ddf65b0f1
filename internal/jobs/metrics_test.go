package jobmetrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const job = "report:daily-close"

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track(job).End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track(job).End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(job)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.running.WithLabelValues(job)))
	require.Positive(t, testutil.ToFloat64(m.lastRun.WithLabelValues(job)))
}

func TestObserveReportsRunningWhileInProgress(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	err := m.Observe(context.Background(), job, func(context.Context) error {
		require.Equal(t, 1.0, testutil.ToFloat64(m.running.WithLabelValues(job)))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, testutil.ToFloat64(m.running.WithLabelValues(job)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, "success")))
}

func TestFailureDoesNotMoveLastSuccess(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.Error(t, m.Track(job).End(errors.New("redis down")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.lastRun.WithLabelValues(job)))
}

func TestNilMetricsPassErrorsThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	require.ErrorIs(t, m.Observe(context.Background(), "x", func(context.Context) error { return boom }), boom)
}

func TestRegisteringTwiceOnOneRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })
}
