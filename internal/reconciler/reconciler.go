// Package reconciler keeps map marker state consistent with the active
// person selection and the placed/found relations between persons and
// geocaches.
//
// With no active person, person markers are blue and geocache markers gray,
// all fully opaque. With an active person, other persons fade to half
// opacity and every geocache marker ends up in exactly one of three colors:
//
//	black  placed by the active person
//	green  found by the active person
//	red    neither
//
// The found pass runs after the placed pass, so inconsistent data (a person
// who found their own cache) shows green.
//
// A Reconciler serializes all of its operations behind one mutex; callers
// may share it between goroutines.
package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/storage"
)

var (
	ErrNoActivePerson  = errors.New("no active person selected")
	ErrUnknownPerson   = errors.New("unknown person")
	ErrUnknownGeocache = errors.New("unknown geocache")
)

// ToggleOutcome describes what ToggleFound did.
type ToggleOutcome int

const (
	// FoundUnchanged means the geocache was placed by the active person and
	// nothing was written.
	FoundUnchanged ToggleOutcome = iota
	// FoundMarked means a found record was created.
	FoundMarked
	// FoundCleared means a found record was deleted.
	FoundCleared
)

func (o ToggleOutcome) String() string {
	switch o {
	case FoundMarked:
		return "marked"
	case FoundCleared:
		return "cleared"
	default:
		return "unchanged"
	}
}

// Reconciler owns the markers of one map view and the active person.
type Reconciler struct {
	persons   storage.PersonStore
	geocaches storage.GeocacheStore
	found     storage.FoundGeocacheStore

	mu      sync.Mutex
	active  *models.Person
	markers []*Marker
}

// New creates an empty Reconciler. Call Load to populate markers from the stores.
func New(persons storage.PersonStore, geocaches storage.GeocacheStore, found storage.FoundGeocacheStore) *Reconciler {
	return &Reconciler{
		persons:   persons,
		geocaches: geocaches,
		found:     found,
	}
}

// Load rebuilds every marker from the stores. A previously active person is
// kept if they still exist, otherwise the selection is cleared.
func (r *Reconciler) Load(ctx context.Context) error {
	persons, err := r.persons.ListPersons(ctx)
	if err != nil {
		return err
	}
	geocaches, err := r.geocaches.ListGeocaches(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	markers := make([]*Marker, 0, len(persons)+len(geocaches))
	var active *models.Person
	for _, p := range persons {
		markers = append(markers, personMarker(p))
		if r.active != nil && p.ID == r.active.ID {
			active = p
		}
	}
	for _, g := range geocaches {
		markers = append(markers, geocacheMarker(g))
	}

	r.markers = markers
	r.active = active
	r.reconcile()

	return nil
}

// SelectPerson makes p the active person and recolors the markers.
// A nil p clears the selection.
func (r *Reconciler) SelectPerson(p *models.Person) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = p
	r.reconcile()
}

// SelectPersonByID selects a loaded person by ID. ID 0 clears the selection.
func (r *Reconciler) SelectPersonByID(personID int64) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if personID == 0 {
		r.active = nil
		r.reconcile()
		return nil, nil
	}

	p := r.personLocked(personID)
	if p == nil {
		return nil, ErrUnknownPerson
	}
	r.active = p
	r.reconcile()

	return p, nil
}

// ActivePerson returns the selected person, or nil.
func (r *Reconciler) ActivePerson() *models.Person {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active
}

// Reconcile recomputes the color and opacity of every marker.
func (r *Reconciler) Reconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconcile()
}

// ToggleFound flips the found record between the active person and g.
// Geocaches placed by the active person are left alone. Store errors are
// returned as is.
func (r *Reconciler) ToggleFound(ctx context.Context, g *models.Geocache) (ToggleOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.toggleLocked(ctx, g)
}

// ToggleFoundByID toggles a loaded geocache by ID.
func (r *Reconciler) ToggleFoundByID(ctx context.Context, geocacheID int64) (ToggleOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.geocacheLocked(geocacheID)
	if g == nil {
		return FoundUnchanged, ErrUnknownGeocache
	}
	return r.toggleLocked(ctx, g)
}

// AddPerson adds a marker for a person that has just been persisted.
func (r *Reconciler) AddPerson(p *models.Person) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markers = append(r.markers, personMarker(p))
	r.reconcile()
}

// AddGeocache adds a marker for a geocache that has just been persisted and
// attaches it to its owner's placed geocaches.
func (r *Reconciler) AddGeocache(g *models.Geocache) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.OwnerID != nil {
		if owner := r.personLocked(*g.OwnerID); owner != nil {
			owner.Geocaches = append(owner.Geocaches, g)
		}
	}
	r.markers = append(r.markers, geocacheMarker(g))
	r.reconcile()
}

// Markers returns a snapshot of the markers in load order.
func (r *Reconciler) Markers() []Marker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Marker, len(r.markers))
	for i, m := range r.markers {
		out[i] = *m
	}
	return out
}

func (r *Reconciler) toggleLocked(ctx context.Context, g *models.Geocache) (ToggleOutcome, error) {
	active := r.active
	if active == nil {
		return FoundUnchanged, ErrNoActivePerson
	}

	if active.HasPlaced(g.ID) {
		r.reconcile()
		return FoundUnchanged, nil
	}

	exists, err := r.found.FoundExists(ctx, active.ID, g.ID)
	if err != nil {
		return FoundUnchanged, err
	}

	record := models.FoundGeocache{PersonID: active.ID, GeocacheID: g.ID}
	loaded := r.geocacheLocked(g.ID)

	var outcome ToggleOutcome
	if exists {
		if err := r.found.DeleteFound(ctx, active.ID, g.ID); err != nil {
			return FoundUnchanged, err
		}
		active.Found = removeFound(active.Found, record)
		if loaded != nil {
			loaded.Found = removeFound(loaded.Found, record)
		}
		outcome = FoundCleared
	} else {
		if err := r.found.CreateFound(ctx, active.ID, g.ID); err != nil {
			return FoundUnchanged, err
		}
		active.Found = append(active.Found, record)
		if loaded != nil {
			loaded.Found = append(loaded.Found, record)
		}
		outcome = FoundMarked
	}

	r.reconcile()
	return outcome, nil
}

func (r *Reconciler) reconcile() {
	if r.active == nil {
		for _, m := range r.markers {
			m.Opacity = OpacityFull
			if m.Kind == MarkerPerson {
				m.Color = ColorBlue
			} else {
				m.Color = ColorGray
			}
		}
		return
	}

	var caches []*Marker
	for _, m := range r.markers {
		switch m.Kind {
		case MarkerPerson:
			m.Color = ColorBlue
			if m.Person.ID == r.active.ID {
				m.Opacity = OpacityFull
			} else {
				m.Opacity = OpacityFaded
			}
		case MarkerGeocache:
			m.Opacity = OpacityFull
			caches = append(caches, m)
		}
	}

	resolved := make([]bool, len(caches))

	// Placed by the active person
	for _, placed := range r.active.Geocaches {
		for i, m := range caches {
			if sameOwner(m.Geocache.OwnerID, placed.OwnerID) {
				m.Color = ColorBlack
				resolved[i] = true
			} else {
				m.Color = ColorGray
			}
		}
	}

	// Found by the active person; overrides the placed pass
	for i, m := range caches {
		if r.active.HasFound(m.Geocache.ID) {
			m.Color = ColorGreen
			resolved[i] = true
		}
	}

	for i, m := range caches {
		if !resolved[i] {
			m.Color = ColorRed
		}
	}
}

func (r *Reconciler) personLocked(id int64) *models.Person {
	for _, m := range r.markers {
		if m.Kind == MarkerPerson && m.Person.ID == id {
			return m.Person
		}
	}
	return nil
}

func (r *Reconciler) geocacheLocked(id int64) *models.Geocache {
	for _, m := range r.markers {
		if m.Kind == MarkerGeocache && m.Geocache.ID == id {
			return m.Geocache
		}
	}
	return nil
}

func sameOwner(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

func removeFound(found []models.FoundGeocache, record models.FoundGeocache) []models.FoundGeocache {
	out := found[:0]
	for _, f := range found {
		if f != record {
			out = append(out, f)
		}
	}
	return out
}
