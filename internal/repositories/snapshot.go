package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/shared"
)

const snapshotColumns = `id, sequence, run_id, playlist_id, name, status, track_count, cumulative_count,
	added_count, removed_count, changed, error_message, created_at, updated_at, deleted_at`

// SnapshotRepository implements models.Repository[*models.Snapshot] for per-playlist run results.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a new snapshot into the database with generated ID and sequence
func (r *SnapshotRepository) Create(snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "snapshots")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO snapshots (id, sequence, run_id, playlist_id, name, status, track_count, cumulative_count,
			added_count, removed_count, changed, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		snapshot.RunID,
		snapshot.PlaylistID,
		snapshot.Name,
		string(snapshot.Status),
		snapshot.TrackCount,
		snapshot.CumulativeCount,
		snapshot.AddedCount,
		snapshot.RemovedCount,
		snapshot.Changed,
		sql.NullString{String: snapshot.ErrorMessage, Valid: snapshot.ErrorMessage != ""},
		snapshot.CreatedAt(),
		snapshot.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	snapshot.SetID(id)
	snapshot.SetSequence(sequence)
	return nil
}

// Get retrieves a snapshot by ID, excluding soft-deleted snapshots
func (r *SnapshotRepository) Get(id string) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = ? AND deleted_at IS NULL`

	snapshot, err := scanSnapshot(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %s", shared.ErrRecordNotFound, id)
	}
	return snapshot, err
}

// Update modifies an existing snapshot in the database
func (r *SnapshotRepository) Update(snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	snapshot.SetUpdatedAt(now)

	query := `
		UPDATE snapshots
		SET name = ?, status = ?, track_count = ?, cumulative_count = ?, added_count = ?, removed_count = ?,
			changed = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		snapshot.Name,
		string(snapshot.Status),
		snapshot.TrackCount,
		snapshot.CumulativeCount,
		snapshot.AddedCount,
		snapshot.RemovedCount,
		snapshot.Changed,
		sql.NullString{String: snapshot.ErrorMessage, Valid: snapshot.ErrorMessage != ""},
		now,
		snapshot.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: snapshot %s", shared.ErrRecordNotFound, snapshot.ID()))
}

// Delete soft-deletes a snapshot by ID
func (r *SnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE snapshots SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: snapshot %s", shared.ErrRecordNotFound, id))
}

// List retrieves snapshots, most recent first, excluding soft-deleted snapshots.
//
// Supported criteria: "run_id" (string), "playlist_id" (string), "status" (string) and "limit" (int).
func (r *SnapshotRepository) List(criteria map[string]any) ([]*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE deleted_at IS NULL`
	args := []any{}

	for _, column := range []string{"run_id", "playlist_id", "status"} {
		if value, ok := criteria[column].(string); ok && value != "" {
			query += " AND " + column + " = ?"
			args = append(args, value)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit := limitFrom(criteria); limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return snapshots, nil
}

// scanSnapshot scans a single row into a [models.Snapshot]
func scanSnapshot(row scanner) (*models.Snapshot, error) {
	var (
		id              string
		sequence        int
		runID           string
		playlistID      string
		name            string
		status          string
		trackCount      int
		cumulativeCount int
		addedCount      int
		removedCount    int
		changed         bool
		errorMessage    sql.NullString
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(&id, &sequence, &runID, &playlistID, &name, &status, &trackCount, &cumulativeCount,
		&addedCount, &removedCount, &changed, &errorMessage, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snapshot := models.NewSnapshot(runID, playlistID, models.SnapshotStatus(status), createdAt)
	snapshot.SetID(id)
	snapshot.SetSequence(sequence)
	snapshot.SetUpdatedAt(updatedAt)
	snapshot.Name = name
	snapshot.TrackCount = trackCount
	snapshot.CumulativeCount = cumulativeCount
	snapshot.AddedCount = addedCount
	snapshot.RemovedCount = removedCount
	snapshot.Changed = changed
	snapshot.ErrorMessage = errorMessage.String
	if deletedAt.Valid {
		snapshot.SetDeletedAt(&deletedAt.Time)
	}

	return snapshot, nil
}
