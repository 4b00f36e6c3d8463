package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/progress"
)

// TestStatusSinkTracksJournals verifies rows follow the journal lifecycle.
func TestStatusSinkTracksJournals(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	runID := progress.UUIDToBytes(uuid.New())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: t0, Stage: progress.StageRunStart},
		{RunID: runID, TS: t0, Stage: progress.StageJournalStart, Journal: "B", URL: "https://x/b", UI: "new", Volumes: 2},
		{RunID: runID, TS: t0.Add(time.Second), Stage: progress.StageVolumeDone, Journal: "B", Authors: 2},
		{RunID: runID, TS: t0.Add(2 * time.Second), Stage: progress.StageVolumeDone, Journal: "B", Authors: 1},
		{RunID: runID, TS: t0.Add(3 * time.Second), Stage: progress.StageJournalError, Journal: "https://x/a", Note: "404"},
	}))

	rows, running := sink.Snapshot()
	require.True(t, running)
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0].Journal)
	assert.Equal(t, StateRunning, rows[0].State)
	assert.Equal(t, int64(2), rows[0].Parsed)
	assert.Equal(t, int64(3), rows[0].Authors)
	assert.Equal(t, StateFailed, rows[1].State)
	assert.Equal(t, "404", rows[1].Error)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: t0.Add(4 * time.Second), Stage: progress.StageJournalDone, Journal: "B", Authors: 3, Dur: 4 * time.Second},
		{RunID: runID, TS: t0.Add(5 * time.Second), Stage: progress.StageRunDone},
	}))
	row, ok := sink.Journal("B")
	require.True(t, ok)
	assert.Equal(t, StateDone, row.State)
	assert.Equal(t, int64(2), row.Volumes)
	assert.Equal(t, t0.Add(4*time.Second), row.UpdatedAt)

	_, running = sink.Snapshot()
	assert.False(t, running)
}

// TestStatusSinkResetsOnNewRun verifies a new run clears the previous table.
func TestStatusSinkResetsOnNewRun(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	first := progress.UUIDToBytes(uuid.New())
	second := progress.UUIDToBytes(uuid.New())
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: first, TS: now, Stage: progress.StageRunStart},
		{RunID: first, TS: now, Stage: progress.StageJournalStart, Journal: "A"},
		{RunID: second, TS: now, Stage: progress.StageRunStart},
	}))
	rows, _ := sink.Snapshot()
	assert.Empty(t, rows)
	_, ok := sink.Journal("A")
	assert.False(t, ok)
}
