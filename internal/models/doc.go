// Package models defines domain entities and persistence interfaces for the playlist archiver.
//
// The package contains two categories of types:
//
// 1. Domain types: snapshots of remote playlist data
//   - [Playlist] : Playlist metadata with its current, ordered tracks
//   - [Track] : Song metadata with artist and album links
//   - [Artist], [Album] : Named, linkable track attributes
//
// 2. Persistent entities: run history rows stored in SQLite
//   - [Run] : One archive run and its totals
//   - [Snapshot] : The outcome of archiving one playlist during a run
//
// Persistent entities implement the [Model] interface providing IDs, timestamps, and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
