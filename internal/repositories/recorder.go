package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/plarchive/internal/models"
)

// RunRecorder implements tasks.Recorder using [RunRepository] and [SnapshotRepository].
type RunRecorder struct {
	runs      *RunRepository
	snapshots *SnapshotRepository
}

// NewRunRecorder creates a new RunRecorder backed by db
func NewRunRecorder(db *sql.DB) *RunRecorder {
	return &RunRecorder{
		runs:      NewRunRepository(db),
		snapshots: NewSnapshotRepository(db),
	}
}

// Record persists run, creating it on first use and updating it afterwards, then attaches snapshots to it.
func (a *RunRecorder) Record(run *models.Run, snapshots []*models.Snapshot) error {
	if run.ID() == "" {
		if err := a.runs.Create(run); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	} else if err := a.runs.Update(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for _, s := range snapshots {
		s.RunID = run.ID()
		if err := a.snapshots.Create(s); err != nil {
			return fmt.Errorf("failed to record snapshot of %s: %w", s.PlaylistID, err)
		}
	}
	return nil
}

// MarkPushed records that the changes of a recorded run were pushed.
func (a *RunRecorder) MarkPushed(run *models.Run) error {
	run.Pushed = true
	return a.runs.Update(run)
}
