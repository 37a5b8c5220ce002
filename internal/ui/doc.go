// Package ui renders run history for the terminal with lipgloss tables.
//
// [RunsTable] lists recorded archive runs and [SnapshotsTable] lists the per-playlist outcomes of one run or the
// history of one playlist. Statuses are colored by outcome when the output supports it.
package ui
