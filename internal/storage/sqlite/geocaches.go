package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/geocaching/internal/models"
)

// CreateGeocache persists a new geocache to the database.
func (s *SQLiteStore) CreateGeocache(ctx context.Context, geocache *models.Geocache) error {
	return insertGeocache(ctx, s.db, geocache)
}

// ListGeocaches retrieves every geocache with its found records.
func (s *SQLiteStore) ListGeocaches(ctx context.Context) ([]*models.Geocache, error) {
	geocaches, err := queryGeocaches(ctx, s.db, "")
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Geocache, len(geocaches))
	for _, geocache := range geocaches {
		byID[geocache.ID] = geocache
	}

	found, err := queryFound(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		if geocache, ok := byID[f.GeocacheID]; ok {
			geocache.Found = append(geocache.Found, f)
		}
	}

	return geocaches, nil
}

func insertGeocache(ctx context.Context, q querier, geocache *models.Geocache) error {
	var owner any
	if geocache.OwnerID != nil {
		owner = *geocache.OwnerID
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO geocaches (person_id, latitude, longitude, contents, message)
		 VALUES (?, ?, ?, ?, ?)`,
		owner, geocache.Coordinate.Latitude, geocache.Coordinate.Longitude,
		geocache.Contents, geocache.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert geocache: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read geocache id: %w", err)
	}
	geocache.ID = id

	return nil
}

// queryGeocaches runs a SELECT over geocaches with an optional WHERE clause.
// The result set is fully read and closed before returning.
func queryGeocaches(ctx context.Context, q querier, where string, args ...any) ([]*models.Geocache, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, person_id, latitude, longitude, contents, message FROM geocaches "+where+" ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get geocaches: %w", err)
	}
	defer rows.Close()

	var geocaches []*models.Geocache
	for rows.Next() {
		geocache := &models.Geocache{}
		var owner sql.NullInt64
		if err := rows.Scan(
			&geocache.ID,
			&owner,
			&geocache.Coordinate.Latitude,
			&geocache.Coordinate.Longitude,
			&geocache.Contents,
			&geocache.Message,
		); err != nil {
			return nil, fmt.Errorf("failed to scan geocache: %w", err)
		}
		if owner.Valid {
			geocache.OwnerID = models.OwnerRef(owner.Int64)
		}
		geocaches = append(geocaches, geocache)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate geocaches: %w", err)
	}

	return geocaches, nil
}
