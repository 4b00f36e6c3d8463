package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/journal-email-crawler/internal/progress"
)

// JournalState is the latest known status of one journal.
type JournalState string

// Journal states.
const (
	StateRunning JournalState = "running"
	StateDone    JournalState = "done"
	StateFailed  JournalState = "failed"
)

// JournalStatus is one row of the status table.
type JournalStatus struct {
	Journal   string        `json:"journal"`
	URL       string        `json:"url,omitempty"`
	UI        string        `json:"ui,omitempty"`
	State     JournalState  `json:"state"`
	Volumes   int64         `json:"volumes"`
	Parsed    int64         `json:"volumes_parsed"`
	Authors   int64         `json:"authors"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// StatusSink keeps a per-journal snapshot of the current run.
type StatusSink struct {
	mu       sync.RWMutex
	runID    [16]byte
	running  bool
	journals map[string]*JournalStatus
}

// NewStatusSink returns an empty status table.
func NewStatusSink() *StatusSink {
	return &StatusSink{journals: make(map[string]*JournalStatus)}
}

// Consume folds events into the table. A RUN_START for a new run resets it.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			if evt.RunID != s.runID {
				s.runID = evt.RunID
				s.journals = make(map[string]*JournalStatus)
			}
			s.running = true
		case progress.StageRunDone:
			s.running = false
		case progress.StageJournalStart:
			row := s.row(evt)
			row.State = StateRunning
			row.URL = evt.URL
			row.UI = evt.UI
			row.Volumes = evt.Volumes
			row.StartedAt = evt.TS
		case progress.StageVolumeDone:
			row := s.row(evt)
			row.Parsed++
			row.Authors += evt.Authors
		case progress.StageJournalDone:
			row := s.row(evt)
			row.State = StateDone
			row.Authors = evt.Authors
			if evt.Volumes > 0 {
				row.Volumes = evt.Volumes
			}
			row.Duration = evt.Dur
		case progress.StageJournalError:
			row := s.row(evt)
			row.State = StateFailed
			row.Error = evt.Note
			row.Duration = evt.Dur
		}
	}
	return nil
}

func (s *StatusSink) row(evt progress.Event) *JournalStatus {
	row, ok := s.journals[evt.Journal]
	if !ok {
		row = &JournalStatus{Journal: evt.Journal, StartedAt: evt.TS}
		s.journals[evt.Journal] = row
	}
	row.UpdatedAt = evt.TS
	return row
}

// Snapshot returns the table sorted by journal name and whether a run is in
// progress.
func (s *StatusSink) Snapshot() ([]JournalStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JournalStatus, 0, len(s.journals))
	for _, row := range s.journals {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Journal < out[j].Journal })
	return out, s.running
}

// Journal returns one row by name.
func (s *StatusSink) Journal(name string) (JournalStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.journals[name]
	if !ok {
		return JournalStatus{}, false
	}
	return *row, true
}

// Close performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
