package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/observability/metrics"
)

func TestScheduler_ServeProcessesQueueUntilCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.seed(t)
	s := NewScheduler(SchedulerConfig{Interval: time.Hour}, h.worker(t, Config{}), h.store, h.metrics, quietLogger())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	// The first tick runs at startup without waiting for the interval
	assert.Eventually(t, func() bool {
		return h.store.entry(id).Status == datastore.QueueStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := NewScheduler(SchedulerConfig{Interval: time.Hour}, h.worker(t, Config{}), nil, nil, quietLogger())

	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(s.Stop)
	require.Error(t, s.Start(t.Context()))
}

func TestScheduler_InvalidPurgeSchedule(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := NewScheduler(SchedulerConfig{Interval: time.Hour, PurgeSchedule: "not a schedule"},
		h.worker(t, Config{}), h.store, nil, quietLogger())

	require.Error(t, s.Start(t.Context()))
	s.Stop()
}

func TestScheduler_Housekeeping(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.purged = 4
	h.store.stats = datastore.QueueStats{Pending: 7, Exhausted: 2, Completed: 11}
	s := NewScheduler(SchedulerConfig{}, h.worker(t, Config{}), h.store, h.metrics, quietLogger())

	s.housekeeping(t.Context())

	assert.InDelta(t, 7, testutil.ToFloat64(h.metrics.QueueEntries.WithLabelValues(metrics.QueueStatePending)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.QueueEntries.WithLabelValues(metrics.QueueStateExhausted)), 0)
	assert.InDelta(t, 11, testutil.ToFloat64(h.metrics.QueueEntries.WithLabelValues(metrics.QueueStateCompleted)), 0)
}

func TestRecoverWrapper(t *testing.T) {
	t.Parallel()

	job := recoverWrapper(quietLogger())(cron.FuncJob(func() { panic("boom") }))
	assert.NotPanics(t, job.Run)
}

func TestKVFields(t *testing.T) {
	t.Parallel()

	fields := kvFields([]any{"entry", 3, 42, "odd", "dangling"})
	require.Len(t, fields, 2)
	assert.Equal(t, "entry", fields[0].Key)
	assert.Equal(t, "42", fields[1].Key)
}
