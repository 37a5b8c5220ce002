package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plarchive/internal/models"
)

func TestRunsTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := RunsTable(nil); !strings.Contains(got, "No runs recorded yet.") {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("rows", func(t *testing.T) {
		started := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
		run := models.NewRun(started)
		run.SetSequence(3)
		run.PlaylistsTotal = 4
		run.PlaylistsChanged = 2
		run.PlaylistsFailed = 1
		run.Finish(started.Add(90 * time.Second))

		got := RunsTable([]*models.Run{run})
		for _, want := range []string{"Runs", "Status", "partial", "1m30s", "no"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q:\n%s", want, got)
			}
		}
	})
}

func TestSnapshotsTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := SnapshotsTable("mix", nil); !strings.Contains(got, "No snapshots recorded.") {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("rows", func(t *testing.T) {
		now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

		ok := models.NewSnapshot("run", "mix", models.SnapshotArchived, now)
		ok.Name = "Morning Mix"
		ok.TrackCount = 12
		ok.AddedCount = 2
		ok.RemovedCount = 1

		failed := models.NewSnapshot("run", "chill", models.SnapshotFailed, now)
		failed.ErrorMessage = "API request failed"

		got := SnapshotsTable("Playlist mix", []*models.Snapshot{ok, failed})
		for _, want := range []string{"Playlist mix", "Morning Mix", "archived", "+2 -1", "failed", "API request failed"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q:\n%s", want, got)
			}
		}
	})
}

func TestPaletteStatus(t *testing.T) {
	for _, status := range []string{"succeeded", "partial", "failed", "archived", "removed", "unknown"} {
		if got := styles.Status(status); !strings.Contains(got, status) {
			t.Errorf("Status(%q) = %q", status, got)
		}
	}
}
