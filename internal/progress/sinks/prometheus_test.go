package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageJournalStart, Journal: "A", UI: "new", Volumes: 2},
		{RunID: runID, TS: now, Stage: progress.StageJournalStart, Journal: "B", UI: "old"},
		{RunID: runID, TS: now, Stage: progress.StageVolumeDone, Journal: "A", Authors: 3},
		{RunID: runID, TS: now, Stage: progress.StageVolumeDone, Journal: "A", Authors: 0},
		{RunID: runID, TS: now, Stage: progress.StageJournalDone, Journal: "A", UI: "new", Dur: 2 * time.Second},
		{RunID: runID, TS: now, Stage: progress.StageJournalError, Journal: "B", UI: "old", Note: "boom"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.journalsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.journalsDone.WithLabelValues("success", "new")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.journalsDone.WithLabelValues("error", "old")))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.volumesDone))
	require.Equal(t, 1, testutil.CollectAndCount(sink.journalRuntime, "journal_crawler_journal_runtime_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

// TestPrometheusSinkDuplicateRegistration verifies registration errors surface.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
