// package formatter renders archived playlists as pretty (markdown), cumulative (markdown), and plain text views
package formatter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/reconcile"
	"github.com/desertthunder/plarchive/internal/shared"
)

const (
	colTrackNo = "No."
	colTitle   = "Title"
	colArtists = "Artist(s)"
	colAlbum   = "Album"
	colLength  = "Length"
	colAdded   = "Added"
	colRemoved = "Removed"
)

var (
	prettyColumns     = []string{colTrackNo, colTitle, colArtists, colAlbum, colLength}
	cumulativeColumns = []string{colTitle, colArtists, colAlbum, colLength, colAdded, colRemoved}

	cellLinkRegex    = regexp.MustCompile(`^\[(.*)\]\(([^)]+)\)$`)
	leadingLinkRegex = regexp.MustCompile(`^\[(.+?)\]\(([^)]+)\)`)
)

// Formatter renders the three views of a playlist.
type Formatter struct {
	urls URLs
}

// New creates a [Formatter] linking views with urls.
func New(urls URLs) *Formatter {
	return &Formatter{urls: urls}
}

// URLs returns the link builder used by the formatter.
func (f *Formatter) URLs() URLs {
	return f.urls
}

// Plain renders the plain view: the playlist name, its description, a blank line, and one
// [models.Track.Line] per member sorted case-insensitively.
//
// Sorting makes the view independent of playlist order, so only membership changes show up in diffs.
func (f *Formatter) Plain(p *models.Playlist, members []models.Track) string {
	lines := make([]string, len(members))
	for i, t := range members {
		lines[i] = singleLine(t.Line())
	}
	SortLines(lines)

	out := append([]string{singleLine(p.Name), singleLine(p.Description), ""}, lines...)
	return strings.Join(out, "\n") + "\n"
}

// Pretty renders the current tracks of p as a numbered markdown table.
func (f *Formatter) Pretty(id string, p *models.Playlist) string {
	lines := f.header(id, p, false)
	lines = append(lines, tableRow(prettyColumns), divider(len(prettyColumns)))

	for i, t := range p.Tracks {
		lines = append(lines, tableRow([]string{
			fmt.Sprint(i + 1),
			link(t.Title, t.URL),
			artistLinks(t.Artists),
			link(t.Album.Name, t.Album.URL),
			shared.FormatDuration(t.Duration()),
		}))
	}

	return strings.Join(lines, "\n") + "\n"
}

// Cumulative renders every entry ever observed, in first-seen order, with added and removed dates.
func (f *Formatter) Cumulative(id string, p *models.Playlist, entries []reconcile.Entry) string {
	lines := f.header(id, p, true)
	lines = append(lines, tableRow(cumulativeColumns), divider(len(cumulativeColumns)))

	for _, e := range entries {
		t := e.Track
		lines = append(lines, tableRow([]string{
			link(t.Title, t.URL),
			artistLinks(t.Artists),
			link(t.Album.Name, t.Album.URL),
			shared.FormatDuration(t.Duration()),
			e.Added,
			e.Removed,
		}))
	}

	return strings.Join(lines, "\n") + "\n"
}

// SortLines sorts lines case-insensitively, breaking ties by byte order so the result is deterministic.
func SortLines(lines []string) {
	sort.SliceStable(lines, func(i, j int) bool {
		li, lj := strings.ToLower(lines[i]), strings.ToLower(lines[j])
		if li != lj {
			return li < lj
		}
		return lines[i] < lines[j]
	})
}

// header returns the navigation line, the linked playlist title, and the quoted description.
func (f *Formatter) header(id string, p *models.Playlist, cumulative bool) []string {
	pretty := "pretty"
	cumul := link("cumulative", f.urls.Cumulative(p.Name))
	if cumulative {
		pretty = link("pretty", f.urls.Pretty(p.Name))
		cumul = "cumulative"
	}

	nav := fmt.Sprintf("%s - %s - %s", pretty, cumul, link("plain", f.urls.Plain(id)))
	if history := f.urls.PlainHistory(id); history != "" {
		nav += fmt.Sprintf(" (%s)", link("githistory", history))
	}

	quote := ">"
	if desc := singleLine(p.Description); desc != "" {
		quote += " " + desc
	}

	return []string{
		nav,
		"",
		"### " + link(p.Name, p.URL),
		"",
		quote,
		"",
	}
}

func tableRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func divider(n int) string {
	return "|" + strings.Repeat("---|", n)
}

// link renders text as a markdown link, or as bare text when url is empty.
func link(text, url string) string {
	text = escapeCell(text)
	if url == "" {
		return text
	}
	return fmt.Sprintf("[%s](%s)", text, url)
}

func artistLinks(artists []models.Artist) string {
	parts := make([]string, len(artists))
	for i, a := range artists {
		parts[i] = link(a.Name, a.URL)
	}
	return strings.Join(parts, models.ArtistSeparator)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(singleLine(s), "|", `\|`)
}

func unescapeCell(s string) string {
	return strings.ReplaceAll(s, `\|`, "|")
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func singleLine(s string) string {
	return newlines.Replace(s)
}
