package main

import (
	"context"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/repositories"
	"github.com/desertthunder/plarchive/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Update archives every registered playlist and optionally publishes the result.
//
// Nothing is pushed unless every playlist was archived.
func (r *Runner) Update(ctx context.Context, cmd *cli.Command) error {
	fetcher, err := r.spotify(ctx)
	if err != nil {
		return err
	}

	store := r.store()
	engine := tasks.NewEngine(fetcher, store, r.views(), r.logger)
	engine.SetClock(r.now)

	db, err := r.history()
	if err != nil {
		return err
	}
	var recorder *repositories.RunRecorder
	if db != nil {
		defer db.Close()
		recorder = repositories.NewRunRecorder(db)
		engine.SetRecorder(recorder)
	}

	workers := cmd.Int("workers")
	if workers <= 0 {
		workers = r.cfg().Archive.Workers
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.LoadArchive:
				r.writePlain("📂 %s\n", update.Message)
			case tasks.FetchPlaylists:
				r.logger.Debug(update.Message)
			case tasks.ArchivePlaylists:
				r.writePlain("   %s\n", update.Message)
			case tasks.VerifyArchive, tasks.UpdateReadme:
				r.writePlain("🔎 %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, progress, tasks.RunOpts{Workers: workers})
	close(progress)
	<-done

	if result != nil {
		r.writeSummary(result)
	}
	if err != nil {
		return err
	}

	if !cmd.Bool("push") {
		return nil
	}

	pushed, err := r.git().Publish(ctx, r.now(), store.Paths()...)
	if err != nil {
		return err
	}
	if pushed {
		r.writePlain("\n✓ Pushed archive changes\n")
		if recorder != nil {
			if err := recorder.MarkPushed(result.Run); err != nil {
				r.logger.Warn("Failed to record push", "error", err)
			}
		}
	}
	return nil
}

func (r *Runner) writeSummary(result *tasks.RunResult) {
	run := result.Run

	r.writePlain("\n")
	r.writePlainHeader("Archive Run Complete")
	r.writePlain("Status: %s\n", run.Status)
	r.writePlain("Playlists: %d (%d changed, %d removed, %d failed)\n",
		run.PlaylistsTotal, run.PlaylistsChanged, run.PlaylistsRemoved, run.PlaylistsFailed)

	if run.PlaylistsFailed > 0 {
		r.writePlain("\nFailed playlists:\n")
		for _, p := range result.Playlists {
			if p.Err != nil && p.Status == models.SnapshotFailed {
				r.writePlain("  - %s: %v\n", p.PlaylistID, p.Err)
			}
		}
	}
	if !result.Changed() {
		r.writePlain("\nNo changes.\n")
	}
}

// Push publishes pending archive changes with git.
func (r *Runner) Push(ctx context.Context, cmd *cli.Command) error {
	pushed, err := r.git().Publish(ctx, r.now(), r.store().Paths()...)
	if err != nil {
		return err
	}

	if !pushed {
		return r.writePlain("Nothing to push\n")
	}
	return r.writePlain("✓ Pushed archive changes\n")
}
