package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageJournalStart Stage = "JOURNAL_START"
	StageVolumeDone   Stage = "VOLUME_DONE"
	StageJournalDone  Stage = "JOURNAL_DONE"
	StageJournalError Stage = "JOURNAL_ERROR"
	StageRunDone      Stage = "RUN_DONE"
)

// Event captures one crawl milestone.
type Event struct {
	// RunID identifies the crawl run in 16-byte UUID form.
	RunID [16]byte
	TS    time.Time
	Stage Stage
	// Journal is the display name, or the input URL before it is resolved.
	Journal string
	URL     string
	// UI is the layout the journal was classified as.
	UI string
	// Authors is the number of records found by this step.
	Authors int64
	// Volumes is the discovered volume count on JOURNAL_START and
	// JOURNAL_DONE, and the volume's index on VOLUME_DONE.
	Volumes int64
	Dur     time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageJournalStart, StageJournalDone, StageJournalError, StageVolumeDone:
		if e.Journal == "" {
			return fmt.Errorf("%s requires journal", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Authors < 0 || e.Volumes < 0 {
		return errors.New("counts must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	return [16]byte(id)
}
