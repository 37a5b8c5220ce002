package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/repositories"
	"github.com/desertthunder/plarchive/internal/shared"
	"github.com/desertthunder/plarchive/internal/ui"
	"github.com/urfave/cli/v3"
)

type runView struct {
	ID               string     `json:"id"`
	Number           int        `json:"number"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	PlaylistsTotal   int        `json:"playlists_total"`
	PlaylistsChanged int        `json:"playlists_changed"`
	PlaylistsRemoved int        `json:"playlists_removed"`
	PlaylistsFailed  int        `json:"playlists_failed"`
	Pushed           bool       `json:"pushed"`
}

type snapshotView struct {
	ID              string    `json:"id"`
	RunID           string    `json:"run_id"`
	PlaylistID      string    `json:"playlist_id"`
	Name            string    `json:"name,omitempty"`
	Status          string    `json:"status"`
	TrackCount      int       `json:"track_count"`
	CumulativeCount int       `json:"cumulative_count"`
	AddedCount      int       `json:"added_count"`
	RemovedCount    int       `json:"removed_count"`
	Changed         bool      `json:"changed"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newRunView(r *models.Run) runView {
	return runView{
		ID:               r.ID(),
		Number:           r.Sequence(),
		Status:           string(r.Status),
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
		PlaylistsTotal:   r.PlaylistsTotal,
		PlaylistsChanged: r.PlaylistsChanged,
		PlaylistsRemoved: r.PlaylistsRemoved,
		PlaylistsFailed:  r.PlaylistsFailed,
		Pushed:           r.Pushed,
	}
}

func newSnapshotView(s *models.Snapshot) snapshotView {
	return snapshotView{
		ID:              s.ID(),
		RunID:           s.RunID,
		PlaylistID:      s.PlaylistID,
		Name:            s.Name,
		Status:          string(s.Status),
		TrackCount:      s.TrackCount,
		CumulativeCount: s.CumulativeCount,
		AddedCount:      s.AddedCount,
		RemovedCount:    s.RemovedCount,
		Changed:         s.Changed,
		Error:           s.ErrorMessage,
		CreatedAt:       s.CreatedAt(),
	}
}

// History shows recorded runs, the snapshots of one run, or the snapshots of one playlist.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.history()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("%w: run history is disabled, set database.path", shared.ErrInvalidConfig)
	}
	defer db.Close()

	limit := cmd.Int("limit")
	asJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if id := cmd.String("playlist"); id != "" {
		snapshots, err := repositories.NewSnapshotRepository(db).List(map[string]any{"playlist_id": id, "limit": limit})
		if err != nil {
			return err
		}
		return r.writeSnapshots("Playlist "+id, snapshots, asJSON, pretty)
	}

	if number := cmd.Int("run"); number > 0 {
		run, err := repositories.NewRunRepository(db).GetBySequence(number)
		if err != nil {
			return err
		}
		snapshots, err := repositories.NewSnapshotRepository(db).List(map[string]any{"run_id": run.ID()})
		if err != nil {
			return err
		}
		return r.writeSnapshots(fmt.Sprintf("Run #%d (%s)", number, run.Status), snapshots, asJSON, pretty)
	}

	runs, err := repositories.NewRunRepository(db).List(map[string]any{"limit": limit})
	if err != nil {
		return err
	}

	if asJSON {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = newRunView(run)
		}
		return r.writeJSON(views, pretty)
	}
	return r.writePlain("%s\n", ui.RunsTable(runs))
}

func (r *Runner) writeSnapshots(title string, snapshots []*models.Snapshot, asJSON, pretty bool) error {
	if asJSON {
		views := make([]snapshotView, len(snapshots))
		for i, s := range snapshots {
			views[i] = newSnapshotView(s)
		}
		return r.writeJSON(views, pretty)
	}
	return r.writePlain("%s\n", ui.SnapshotsTable(title, snapshots))
}
