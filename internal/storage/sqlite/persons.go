package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/storage"
)

const personColumns = `id, first_name, last_name, country, city, street_name, street_number, latitude, longitude`

// CreatePerson persists a new person to the database.
func (s *SQLiteStore) CreatePerson(ctx context.Context, person *models.Person) error {
	return insertPerson(ctx, s.db, person)
}

// GetPerson retrieves a person by ID, including placed geocaches and found records.
func (s *SQLiteStore) GetPerson(ctx context.Context, personID int64) (*models.Person, error) {
	person, err := scanPerson(s.db.QueryRowContext(ctx,
		"SELECT "+personColumns+" FROM persons WHERE id = ?",
		personID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("person %d: %w", personID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	geocaches, err := queryGeocaches(ctx, s.db, "WHERE person_id = ?", personID)
	if err != nil {
		return nil, err
	}
	person.Geocaches = geocaches

	found, err := queryFound(ctx, s.db, "WHERE person_id = ?", personID)
	if err != nil {
		return nil, err
	}
	person.Found = found

	return person, nil
}

// ListPersons retrieves every person with placed geocaches and found records.
func (s *SQLiteStore) ListPersons(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+personColumns+" FROM persons ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}

	var persons []*models.Person
	byID := make(map[int64]*models.Person)
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, person)
		byID[person.ID] = person
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}

	// The single connection is free again, attach the nested collections
	geocaches, err := queryGeocaches(ctx, s.db, "WHERE person_id IS NOT NULL")
	if err != nil {
		return nil, err
	}
	for _, geocache := range geocaches {
		if owner, ok := byID[*geocache.OwnerID]; ok {
			owner.Geocaches = append(owner.Geocaches, geocache)
		}
	}

	found, err := queryFound(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		if person, ok := byID[f.PersonID]; ok {
			person.Found = append(person.Found, f)
		}
	}

	return persons, nil
}

func insertPerson(ctx context.Context, q querier, person *models.Person) error {
	result, err := q.ExecContext(ctx,
		`INSERT INTO persons (first_name, last_name, country, city, street_name, street_number, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		person.FirstName, person.LastName,
		person.Address.Country, person.Address.City, person.Address.StreetName, person.Address.StreetNumber,
		person.Coordinate.Latitude, person.Coordinate.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read person id: %w", err)
	}
	person.ID = id

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	person := &models.Person{}
	err := row.Scan(
		&person.ID,
		&person.FirstName,
		&person.LastName,
		&person.Address.Country,
		&person.Address.City,
		&person.Address.StreetName,
		&person.Address.StreetNumber,
		&person.Coordinate.Latitude,
		&person.Coordinate.Longitude,
	)
	if err != nil {
		return nil, err
	}
	return person, nil
}
