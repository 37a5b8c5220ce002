package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/plarchive/internal/models"
)

// TimeLayout formats timestamps in history tables.
const TimeLayout = "2006-01-02 15:04"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = NewStyle("#626262")
)

// RunsTable renders recorded runs, one per row.
func RunsTable(runs []*models.Run) string {
	if len(runs) == 0 {
		return styles.help.Render("No runs recorded yet.")
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			fmt.Sprint(r.Sequence()),
			r.StartedAt.Local().Format(TimeLayout),
			styles.Status(string(r.Status)),
			fmt.Sprint(r.PlaylistsTotal),
			fmt.Sprint(r.PlaylistsChanged),
			fmt.Sprint(r.PlaylistsRemoved),
			fmt.Sprint(r.PlaylistsFailed),
			yesNo(r.Pushed),
			formatDuration(r.Duration()),
		}
	}

	return render("Runs", []string{"#", "Started", "Status", "Playlists", "Changed", "Removed", "Failed", "Pushed", "Took"}, rows)
}

// SnapshotsTable renders per-playlist outcomes, one per row. Failed rows show their error.
func SnapshotsTable(title string, snapshots []*models.Snapshot) string {
	if len(snapshots) == 0 {
		return styles.help.Render("No snapshots recorded.")
	}

	rows := make([][]string, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []string{
			s.CreatedAt().Local().Format(TimeLayout),
			s.PlaylistID,
			s.Name,
			styles.Status(string(s.Status)),
			fmt.Sprint(s.TrackCount),
			fmt.Sprint(s.CumulativeCount),
			fmt.Sprintf("+%d -%d", s.AddedCount, s.RemovedCount),
			s.ErrorMessage,
		}
	}

	return render(title, []string{"Date", "Playlist", "Name", "Status", "Tracks", "All time", "Changes", "Error"}, rows)
}

func render(title string, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	var sb strings.Builder
	if title != "" {
		sb.WriteString(styles.title.Render(title))
		sb.WriteString("\n")
	}
	sb.WriteString(t.Render())
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
