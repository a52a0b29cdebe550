package models

import "fmt"

// Person is someone who places and finds geocaches.
// Persons are created from the map or by import and are never deleted except
// when the whole dataset is reset.
type Person struct {
	// ID is assigned by the store on creation.
	ID int64

	FirstName string
	LastName  string

	// Address is where the person lives; it is shown in the marker tooltip.
	Address Address

	// Coordinate is where the person's marker is placed on the map.
	Coordinate Coordinate

	// Geocaches are the geocaches placed by this person (OwnerID == ID).
	// Populated by PersonStore.ListPersons.
	Geocaches []*Geocache

	// Found are the geocaches this person has found.
	// Populated by PersonStore.ListPersons.
	Found []FoundGeocache
}

// Address is a postal address. StreetNumber fits in a byte, as in the
// original schema.
type Address struct {
	Country      string
	City         string
	StreetName   string
	StreetNumber int
}

// FullName returns "First Last".
func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Tooltip returns the text shown when hovering the person's marker.
func (p *Person) Tooltip() string {
	return fmt.Sprintf("%s\n%s %d\n%s", p.FullName(), p.Address.StreetName, p.Address.StreetNumber, p.Address.City)
}

// HasPlaced reports whether the person placed the geocache with the given ID.
func (p *Person) HasPlaced(geocacheID int64) bool {
	for _, g := range p.Geocaches {
		if g.ID == geocacheID {
			return true
		}
	}
	return false
}

// HasFound reports whether the person has a found record for the geocache.
func (p *Person) HasFound(geocacheID int64) bool {
	for _, f := range p.Found {
		if f.GeocacheID == geocacheID {
			return true
		}
	}
	return false
}

// Validate checks field presence and the length limits of the schema.
func (p *Person) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"first name", p.FirstName},
		{"last name", p.LastName},
		{"country", p.Address.Country},
		{"city", p.Address.City},
		{"street name", p.Address.StreetName},
	}
	for _, f := range fields {
		if err := checkText(f.name, f.value, MaxNameLength); err != nil {
			return err
		}
	}
	if p.Address.StreetNumber < 0 || p.Address.StreetNumber > MaxStreetNumber {
		return fmt.Errorf("%w: street number must be between 0 and %d, got %d",
			ErrValidation, MaxStreetNumber, p.Address.StreetNumber)
	}
	return p.Coordinate.Validate()
}
