// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/geocaching/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PersonStore persists persons.
type PersonStore interface {
	// CreatePerson persists a new person. The person.ID field will be
	// populated by the store.
	CreatePerson(ctx context.Context, person *models.Person) error

	// GetPerson retrieves a person by ID, with Geocaches and Found populated.
	// Returns ErrNotFound if the person does not exist.
	GetPerson(ctx context.Context, personID int64) (*models.Person, error)

	// ListPersons returns every person ordered by ID, with Geocaches and
	// Found populated.
	ListPersons(ctx context.Context) ([]*models.Person, error)
}

// GeocacheStore persists geocaches.
type GeocacheStore interface {
	// CreateGeocache persists a new geocache. The geocache.ID field will be
	// populated by the store.
	CreateGeocache(ctx context.Context, geocache *models.Geocache) error

	// ListGeocaches returns every geocache ordered by ID, with Found populated.
	ListGeocaches(ctx context.Context) ([]*models.Geocache, error)
}

// FoundGeocacheStore persists the person/geocache "found" relation.
type FoundGeocacheStore interface {
	FoundExists(ctx context.Context, personID, geocacheID int64) (bool, error)

	// CreateFound inserts the record. Inserting an existing pair is an error.
	CreateFound(ctx context.Context, personID, geocacheID int64) error

	// DeleteFound removes the record. Returns ErrNotFound if it does not exist.
	DeleteFound(ctx context.Context, personID, geocacheID int64) error
}

// Store defines the full set of storage operations.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	PersonStore
	GeocacheStore
	FoundGeocacheStore

	// ImportDataset replaces the stored dataset with ds in one transaction.
	// IDs in ds are treated as references local to ds; the store assigns new
	// IDs and rewrites ds in place with them.
	ImportDataset(ctx context.Context, ds *models.Dataset) error

	// Reset deletes every person, geocache and found record.
	Reset(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
