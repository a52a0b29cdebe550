package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/storage"
)

// FoundExists reports whether the person has found the geocache.
func (s *SQLiteStore) FoundExists(ctx context.Context, personID, geocacheID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM found_geocaches WHERE person_id = ? AND geocache_id = ?)",
		personID, geocacheID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check found record: %w", err)
	}
	return exists, nil
}

// CreateFound records that the person has found the geocache.
func (s *SQLiteStore) CreateFound(ctx context.Context, personID, geocacheID int64) error {
	return insertFound(ctx, s.db, personID, geocacheID)
}

// DeleteFound removes the found record for the pair.
func (s *SQLiteStore) DeleteFound(ctx context.Context, personID, geocacheID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM found_geocaches WHERE person_id = ? AND geocache_id = ?",
		personID, geocacheID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete found record: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete found record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("found record (%d, %d): %w", personID, geocacheID, storage.ErrNotFound)
	}

	return nil
}

func insertFound(ctx context.Context, q querier, personID, geocacheID int64) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO found_geocaches (person_id, geocache_id) VALUES (?, ?)",
		personID, geocacheID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert found record: %w", err)
	}
	return nil
}

// queryFound lists found records, optionally filtered by a WHERE clause.
func queryFound(ctx context.Context, q querier, where string, args ...any) ([]models.FoundGeocache, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT person_id, geocache_id FROM found_geocaches "+where+" ORDER BY person_id, geocache_id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get found records: %w", err)
	}
	defer rows.Close()

	var found []models.FoundGeocache
	for rows.Next() {
		var f models.FoundGeocache
		if err := rows.Scan(&f.PersonID, &f.GeocacheID); err != nil {
			return nil, fmt.Errorf("failed to scan found record: %w", err)
		}
		found = append(found, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate found records: %w", err)
	}

	return found, nil
}
