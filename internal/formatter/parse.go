package formatter

import (
	"net/url"
	"strings"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/reconcile"
	"github.com/desertthunder/plarchive/internal/shared"
)

// ParseCumulative recovers the entries of a cumulative view rendered by [Formatter.Cumulative].
//
// Rows before the table divider are ignored, as are rows that do not have one cell per column.
// An empty or unrecognized document yields no entries.
func ParseCumulative(content string) []reconcile.Entry {
	lines := strings.Split(content, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == divider(len(cumulativeColumns)) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var entries []reconcile.Entry
	for _, line := range lines[start:] {
		cells, ok := splitRow(line)
		if !ok || len(cells) != len(cumulativeColumns) {
			continue
		}

		title, trackURL := parseLink(cells[0])
		album, albumURL := parseLink(cells[2])
		seconds, err := shared.ParseDuration(cells[3])
		if err != nil {
			seconds = 0
		}

		entries = append(entries, reconcile.Entry{
			Track: models.Track{
				ID:         trackIDFromURL(trackURL),
				URL:        trackURL,
				Title:      title,
				Artists:    parseArtists(cells[1]),
				Album:      models.Album{Name: album, URL: albumURL},
				DurationMS: seconds * 1000,
			},
			Added:   cells[4],
			Removed: cells[5],
		})
	}

	return entries
}

// splitRow splits a markdown table row on unescaped pipes. Cells are trimmed but keep their escapes.
func splitRow(line string) ([]string, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 2 || line[0] != '|' || line[len(line)-1] != '|' || line[len(line)-2] == '\\' {
		return nil, false
	}

	var (
		cells []string
		cell  strings.Builder
	)
	for i := 1; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cell.WriteString(`\|`)
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteByte(line[i])
		}
	}
	return cells, true
}

// parseLink is the inverse of link.
func parseLink(cell string) (text, href string) {
	if m := cellLinkRegex.FindStringSubmatch(cell); m != nil {
		return unescapeCell(m[1]), m[2]
	}
	return unescapeCell(cell), ""
}

// parseArtists is the inverse of artistLinks. Linked and bare names may be mixed.
func parseArtists(cell string) []models.Artist {
	artists := []models.Artist{}
	rest := cell
	for rest != "" {
		if m := leadingLinkRegex.FindStringSubmatch(rest); m != nil {
			artists = append(artists, models.Artist{Name: unescapeCell(m[1]), URL: m[2]})
			rest = rest[len(m[0]):]
		} else if idx := strings.Index(rest, models.ArtistSeparator); idx >= 0 {
			artists = append(artists, models.Artist{Name: unescapeCell(rest[:idx])})
			rest = rest[idx:]
		} else {
			artists = append(artists, models.Artist{Name: unescapeCell(rest)})
			rest = ""
		}
		rest = strings.TrimPrefix(rest, models.ArtistSeparator)
	}
	return artists
}

// trackIDFromURL extracts the ID from a track or episode link such as https://open.spotify.com/track/<id>.
func trackIDFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	kind, id, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	switch kind {
	case "track", "episode":
		return id
	}
	return ""
}
