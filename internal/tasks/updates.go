package tasks

import (
	"fmt"

	"github.com/desertthunder/plarchive/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadArchive Phase = iota
	FetchPlaylists
	ArchivePlaylists
	VerifyArchive
	UpdateReadme
	RecordRun
)

func (p Phase) String() string {
	switch p {
	case LoadArchive:
		return "load_archive"
	case FetchPlaylists:
		return "fetch_playlists"
	case ArchivePlaylists:
		return "archive_playlists"
	case VerifyArchive:
		return "verify_archive"
	case UpdateReadme:
		return "update_readme"
	case RecordRun:
		return "record_run"
	default:
		return ""
	}
}

func loadArchiveUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadArchive,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d playlists", count),
	}
}

func fetchPlaylistUpdate(step, total int, id string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   FetchPlaylists,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
		}
	}
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetched %s", step, total, id),
	}
}

func archivePlaylistUpdate(step, total int, res *PlaylistResult) ProgressUpdate {
	var message string
	switch res.Status {
	case models.SnapshotArchived:
		mark := "unchanged"
		if res.Changed {
			mark = fmt.Sprintf("+%d -%d", res.Added, res.Removed)
		}
		message = fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.Name, mark)
	case models.SnapshotRemoved:
		message = fmt.Sprintf("[%d/%d] Removed %s: %v", step, total, res.PlaylistID, res.Err)
	default:
		message = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.PlaylistID, res.Err)
	}

	return ProgressUpdate{
		Phase:   ArchivePlaylists,
		Step:    step,
		Total:   total,
		Message: message,
		Data:    res,
	}
}

func verifyArchiveUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   VerifyArchive,
		Step:    1,
		Total:   1,
		Message: "Checking archive consistency...",
	}
}

func updateReadmeUpdate(changed bool) ProgressUpdate {
	message := "README is up to date"
	if changed {
		message = "README updated"
	}
	return ProgressUpdate{
		Phase:   UpdateReadme,
		Step:    1,
		Total:   1,
		Message: message,
	}
}

func recordRunUpdate(run *models.Run) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run finished: %s", run.Status),
		Data:    run,
	}
}
