package formatter

import (
	"net/url"
	"strings"
)

// URLs builds the links rendered in view headers and the README index.
//
// Base is the repository-relative playlists directory (e.g. "/playlists").
// HistoryBase, when set, points at an external git history viewer for the same directory.
type URLs struct {
	Base        string
	HistoryBase string
}

// NewURLs returns [URLs] for a playlists directory relative to the repository root.
func NewURLs(playlistsDir, historyBase string) URLs {
	return URLs{
		Base:        "/" + strings.Trim(playlistsDir, "/"),
		HistoryBase: strings.TrimRight(historyBase, "/"),
	}
}

// Plain returns the link to a playlist's plain view.
func (u URLs) Plain(id string) string {
	return u.Base + "/plain/" + url.PathEscape(id)
}

// PlainHistory returns the history viewer link for a playlist's plain view, or "" without a HistoryBase.
func (u URLs) PlainHistory(id string) string {
	if u.HistoryBase == "" {
		return ""
	}
	return u.HistoryBase + "/plain/" + url.PathEscape(id)
}

// Pretty returns the link to a playlist's pretty view.
func (u URLs) Pretty(name string) string {
	return u.Base + "/pretty/" + url.PathEscape(name) + ".md"
}

// Cumulative returns the link to a playlist's cumulative view.
func (u URLs) Cumulative(name string) string {
	return u.Base + "/cumulative/" + url.PathEscape(name) + ".md"
}
