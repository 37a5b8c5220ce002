// Package repositories implements SQLite persistence for the run history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [RunRepository] : one row per archive run with its playlist totals
//   - [SnapshotRepository] : per-playlist outcomes of a run, queryable by run or playlist
//   - [RunRecorder] : adapts both repositories to tasks.Recorder
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
