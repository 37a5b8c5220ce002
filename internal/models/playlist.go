package models

import (
	"fmt"
	"strings"
	"unicode"
)

// MissingValue replaces track and album names the API returns empty.
const MissingValue = "<MISSING>"

// ArtistSeparator joins artist names in rendered views.
const ArtistSeparator = ", "

// Artist is a track artist with an optional link.
type Artist struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Album is a track album with an optional link.
type Album struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Track represents a single playlist entry.
//
// ID and URL are empty for tracks the service cannot resolve (e.g. local files).
type Track struct {
	ID         string   `json:"id,omitempty"`
	URL        string   `json:"url,omitempty"`
	Title      string   `json:"title"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
}

// Playlist is a snapshot of a remote playlist and its current, ordered tracks.
type Playlist struct {
	ID          string  `json:"id"`
	URL         string  `json:"url,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Tracks      []Track `json:"tracks"`
}

// ArtistNames returns the artist names in order.
func (t Track) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// Duration returns the track length in whole seconds.
func (t Track) Duration() int {
	return t.DurationMS / 1000
}

// Line formats the track as "<title> -- <artists> -- <album>", the unit of the plain view.
func (t Track) Line() string {
	return fmt.Sprintf("%s -- %s -- %s", t.Title, strings.Join(t.ArtistNames(), ArtistSeparator), t.Album.Name)
}

// Key identifies a track across snapshots: its ID, or the lowercased [Track.Line] when it has none.
func (t Track) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return strings.ToLower(t.Line())
}

// SanitizeName makes a playlist name safe for use as a file name.
//
// Line breaks become spaces, slashes become backslashes, and enclosing whitespace and dots are trimmed.
// The result is the same name the plain view records on its first line.
func SanitizeName(name string) string {
	name = nameReplacer.Replace(name)
	return strings.TrimFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.'
	})
}

var nameReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "/", "\\")
