// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys are a per-connection setting, so they go in the DSN
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers; queries must not be nested
	// while a result set is open.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reset deletes the whole dataset and restarts ID assignment.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearAll(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ImportDataset replaces the stored dataset with ds.
func (s *SQLiteStore) ImportDataset(ctx context.Context, ds *models.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearAll(ctx, tx); err != nil {
		return err
	}

	// Insert persons, remembering how dataset IDs map to stored IDs
	personIDs := make(map[int64]int64, len(ds.Persons))
	for _, person := range ds.Persons {
		localID := person.ID
		if err := insertPerson(ctx, tx, person); err != nil {
			return err
		}
		personIDs[localID] = person.ID
	}

	geocacheIDs := make(map[int64]int64, len(ds.Geocaches))
	for _, geocache := range ds.Geocaches {
		localID := geocache.ID
		if geocache.OwnerID != nil {
			ownerID, ok := personIDs[*geocache.OwnerID]
			if !ok {
				return fmt.Errorf("geocache %d references unknown owner %d", localID, *geocache.OwnerID)
			}
			geocache.OwnerID = models.OwnerRef(ownerID)
		}
		if err := insertGeocache(ctx, tx, geocache); err != nil {
			return err
		}
		geocacheIDs[localID] = geocache.ID
	}

	for i, found := range ds.Found {
		personID, ok := personIDs[found.PersonID]
		if !ok {
			return fmt.Errorf("found record references unknown person %d", found.PersonID)
		}
		geocacheID, ok := geocacheIDs[found.GeocacheID]
		if !ok {
			return fmt.Errorf("found record references unknown geocache %d", found.GeocacheID)
		}
		if err := insertFound(ctx, tx, personID, geocacheID); err != nil {
			return err
		}
		ds.Found[i] = models.FoundGeocache{PersonID: personID, GeocacheID: geocacheID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// clearAll deletes every row in dependency order and resets AUTOINCREMENT
// counters so a fresh dataset starts at ID 1.
func clearAll(ctx context.Context, q querier) error {
	statements := []string{
		"DELETE FROM found_geocaches",
		"DELETE FROM geocaches",
		"DELETE FROM persons",
		"DELETE FROM sqlite_sequence WHERE name IN ('persons', 'geocaches')",
	}
	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear dataset: %w", err)
		}
	}
	return nil
}
