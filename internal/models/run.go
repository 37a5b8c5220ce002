package models

import (
	"fmt"
	"time"
)

// RunStatus is the outcome of an archive run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// SnapshotStatus is the outcome of archiving one playlist.
type SnapshotStatus string

const (
	SnapshotArchived SnapshotStatus = "archived"
	SnapshotRemoved  SnapshotStatus = "removed"
	SnapshotFailed   SnapshotStatus = "failed"
)

// Run is a persisted record of one archive run.
type Run struct {
	record
	Status           RunStatus
	StartedAt        time.Time
	FinishedAt       *time.Time
	PlaylistsTotal   int
	PlaylistsChanged int
	PlaylistsRemoved int
	PlaylistsFailed  int
	Pushed           bool
}

// NewRun creates a running [Run] started at startedAt.
func NewRun(startedAt time.Time) *Run {
	return &Run{
		record:    newRecord(startedAt),
		Status:    RunRunning,
		StartedAt: startedAt,
	}
}

// Finish marks the run as finished with the status derived from its totals.
func (r *Run) Finish(at time.Time) {
	r.FinishedAt = &at
	switch {
	case r.PlaylistsFailed == 0:
		r.Status = RunSucceeded
	case r.PlaylistsFailed < r.PlaylistsTotal:
		r.Status = RunPartial
	default:
		r.Status = RunFailed
	}
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Run) Validate() error {
	switch r.Status {
	case RunRunning, RunSucceeded, RunPartial, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("run start time is required")
	}
	if r.PlaylistsChanged+r.PlaylistsRemoved+r.PlaylistsFailed > r.PlaylistsTotal {
		return fmt.Errorf("run totals exceed playlist count %d", r.PlaylistsTotal)
	}
	return nil
}

// Snapshot is a persisted record of one playlist's outcome within a [Run].
type Snapshot struct {
	record
	RunID           string
	PlaylistID      string
	Name            string
	Status          SnapshotStatus
	TrackCount      int
	CumulativeCount int
	AddedCount      int
	RemovedCount    int
	Changed         bool
	ErrorMessage    string
}

// NewSnapshot creates a [Snapshot] for playlistID within runID.
func NewSnapshot(runID, playlistID string, status SnapshotStatus, now time.Time) *Snapshot {
	return &Snapshot{
		record:     newRecord(now),
		RunID:      runID,
		PlaylistID: playlistID,
		Status:     status,
	}
}

func (s *Snapshot) Validate() error {
	if s.RunID == "" {
		return fmt.Errorf("snapshot run ID is required")
	}
	if s.PlaylistID == "" {
		return fmt.Errorf("snapshot playlist ID is required")
	}
	switch s.Status {
	case SnapshotArchived, SnapshotRemoved, SnapshotFailed:
	default:
		return fmt.Errorf("invalid snapshot status %q", s.Status)
	}
	if s.Status == SnapshotFailed && s.ErrorMessage == "" {
		return fmt.Errorf("failed snapshot requires an error message")
	}
	return nil
}
