// Package reconcile merges a freshly fetched playlist into its cumulative history.
//
// The cumulative history is an ordered list of [Entry] values, one per distinct track ever observed
// (see [models.Track.Key]), in first-seen order. Entries are never dropped: a track that leaves the
// playlist keeps its entry with a removal date, and clears it again if it comes back.
package reconcile

import (
	"strings"

	"github.com/desertthunder/plarchive/internal/models"
)

// DateLayout is the format of [Entry.Added] and [Entry.Removed].
const DateLayout = "2006-01-02"

// Entry is a track in the cumulative history.
type Entry struct {
	Track   models.Track
	Added   string // date first seen
	Removed string // date last seen missing, empty while the track is present
}

// Present reports whether the track is currently in the playlist.
func (e Entry) Present() bool {
	return e.Removed == ""
}

// Result is the outcome of [Merge].
type Result struct {
	Cumulative []Entry        // all entries, first-seen order
	Members    []models.Track // current tracks, deduplicated, in playlist order
	Added      []models.Track // tracks seen for the first time
	Restored   []models.Track // previously removed tracks that came back
	Removed    []models.Track // tracks that left the playlist in this merge
}

// Changed reports whether membership changed.
func (r *Result) Changed() bool {
	return len(r.Added)+len(r.Restored)+len(r.Removed) > 0
}

// Merge reconciles the current track list against the previous cumulative entries.
//
// today is recorded as the added or removed date of entries whose membership changes.
// previous is not modified.
func Merge(previous []Entry, current []models.Track, today string) *Result {
	result := &Result{
		Cumulative: make([]Entry, 0, len(previous)+len(current)),
	}

	index := make(map[string]int, len(previous)+len(current))
	for _, e := range previous {
		key := e.Track.Key()
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(result.Cumulative)
		result.Cumulative = append(result.Cumulative, e)
	}

	seen := make(map[string]bool, len(current))
	for _, track := range current {
		key := track.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		result.Members = append(result.Members, track)

		pos, ok := index[key]
		if !ok && track.ID != "" {
			// Rows read back without a link have no ID and are keyed by their line.
			lineKey := strings.ToLower(track.Line())
			if pos, ok = index[lineKey]; ok && result.Cumulative[pos].Track.ID == "" && !seen[lineKey] {
				delete(index, lineKey)
				index[key] = pos
			} else {
				ok = false
			}
		}
		if !ok {
			index[key] = len(result.Cumulative)
			result.Cumulative = append(result.Cumulative, Entry{Track: track, Added: today})
			result.Added = append(result.Added, track)
			continue
		}

		entry := &result.Cumulative[pos]
		if !entry.Present() {
			result.Restored = append(result.Restored, track)
		}
		entry.Track = track
		entry.Removed = ""
		if entry.Added == "" {
			entry.Added = today
		}
	}

	for i := range result.Cumulative {
		entry := &result.Cumulative[i]
		if seen[entry.Track.Key()] || !entry.Present() {
			continue
		}
		entry.Removed = today
		result.Removed = append(result.Removed, entry.Track)
	}

	return result
}
