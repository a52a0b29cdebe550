package models

// Geocache is a cache hidden at a coordinate.
type Geocache struct {
	// ID is assigned by the store on creation.
	ID int64

	// OwnerID is the person who placed the geocache, or nil for an unowned
	// geocache. It is set on creation and never changed.
	OwnerID *int64

	Coordinate Coordinate

	// Contents describes what is inside the cache.
	Contents string

	// Message is the note left for finders.
	Message string

	// Found are the persons that have found this geocache.
	// Populated by GeocacheStore.ListGeocaches.
	Found []FoundGeocache
}

// FoundGeocache records that a person has found a geocache.
// Existence is a boolean: there is at most one record per pair.
type FoundGeocache struct {
	PersonID   int64
	GeocacheID int64
}

// IsOwnedBy reports whether the geocache was placed by the given person.
func (g *Geocache) IsOwnedBy(personID int64) bool {
	return g.OwnerID != nil && *g.OwnerID == personID
}

// Tooltip returns the text shown when hovering the geocache's marker.
func (g *Geocache) Tooltip() string {
	return g.Contents + "\n" + g.Message
}

// Validate checks field presence and the length limits of the schema.
func (g *Geocache) Validate() error {
	if err := checkText("contents", g.Contents, MaxTextLength); err != nil {
		return err
	}
	if err := checkText("message", g.Message, MaxTextLength); err != nil {
		return err
	}
	return g.Coordinate.Validate()
}

// OwnerRef returns a pointer to a copy of id, for use as Geocache.OwnerID.
func OwnerRef(id int64) *int64 {
	return &id
}
