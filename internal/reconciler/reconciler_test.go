package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/storage"
)

// memStore is an in-memory implementation of the three collaborator stores.
type memStore struct {
	persons   []models.Person
	geocaches []models.Geocache
	found     map[models.FoundGeocache]bool

	// failNext makes the next store call return this error.
	failNext error
	writes   int
}

func newMemStore() *memStore {
	return &memStore{found: make(map[models.FoundGeocache]bool)}
}

func (s *memStore) fail() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *memStore) CreatePerson(ctx context.Context, p *models.Person) error {
	if err := s.fail(); err != nil {
		return err
	}
	p.ID = int64(len(s.persons) + 1)
	s.persons = append(s.persons, *p)
	return nil
}

func (s *memStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	persons, err := s.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range persons {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) ListPersons(ctx context.Context) ([]*models.Person, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []*models.Person
	for _, p := range s.persons {
		p := p
		p.Geocaches = nil
		p.Found = nil
		for _, g := range s.geocaches {
			g := g
			if g.IsOwnedBy(p.ID) {
				p.Geocaches = append(p.Geocaches, &g)
			}
		}
		for f := range s.found {
			if f.PersonID == p.ID {
				p.Found = append(p.Found, f)
			}
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *memStore) CreateGeocache(ctx context.Context, g *models.Geocache) error {
	if err := s.fail(); err != nil {
		return err
	}
	g.ID = int64(len(s.geocaches) + 100)
	s.geocaches = append(s.geocaches, *g)
	return nil
}

func (s *memStore) ListGeocaches(ctx context.Context) ([]*models.Geocache, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []*models.Geocache
	for _, g := range s.geocaches {
		g := g
		g.Found = nil
		for f := range s.found {
			if f.GeocacheID == g.ID {
				g.Found = append(g.Found, f)
			}
		}
		out = append(out, &g)
	}
	return out, nil
}

func (s *memStore) FoundExists(ctx context.Context, personID, geocacheID int64) (bool, error) {
	if err := s.fail(); err != nil {
		return false, err
	}
	return s.found[models.FoundGeocache{PersonID: personID, GeocacheID: geocacheID}], nil
}

func (s *memStore) CreateFound(ctx context.Context, personID, geocacheID int64) error {
	if err := s.fail(); err != nil {
		return err
	}
	key := models.FoundGeocache{PersonID: personID, GeocacheID: geocacheID}
	if s.found[key] {
		return errors.New("duplicate found record")
	}
	s.found[key] = true
	s.writes++
	return nil
}

func (s *memStore) DeleteFound(ctx context.Context, personID, geocacheID int64) error {
	if err := s.fail(); err != nil {
		return err
	}
	key := models.FoundGeocache{PersonID: personID, GeocacheID: geocacheID}
	if !s.found[key] {
		return storage.ErrNotFound
	}
	delete(s.found, key)
	s.writes++
	return nil
}

// scenarioStore holds persons 1 and 2; person 1 placed geocache 10 and
// person 2 placed geocache 11.
func scenarioStore() *memStore {
	s := newMemStore()
	s.persons = []models.Person{
		{ID: 1, FirstName: "P1"},
		{ID: 2, FirstName: "P2"},
	}
	s.geocaches = []models.Geocache{
		{ID: 10, OwnerID: models.OwnerRef(1), Contents: "G1"},
		{ID: 11, OwnerID: models.OwnerRef(2), Contents: "G2"},
	}
	return s
}

func loaded(t *testing.T, s *memStore) *Reconciler {
	t.Helper()
	r := New(s, s, s)
	require.NoError(t, r.Load(context.Background()))
	return r
}

func findMarker(t *testing.T, r *Reconciler, kind MarkerKind, id int64) Marker {
	t.Helper()
	for _, m := range r.Markers() {
		if m.Kind == kind && m.EntityID() == id {
			return m
		}
	}
	t.Fatalf("no %s marker with id %d", kind, id)
	return Marker{}
}

func geocacheColor(t *testing.T, r *Reconciler, id int64) Color {
	t.Helper()
	return findMarker(t, r, MarkerGeocache, id).Color
}

func TestLoadBuildsMarkers(t *testing.T) {
	r := loaded(t, scenarioStore())

	markers := r.Markers()
	require.Len(t, markers, 4)
	assert.Equal(t, MarkerPerson, markers[0].Kind)
	assert.Equal(t, MarkerPerson, markers[1].Kind)
	assert.Equal(t, MarkerGeocache, markers[2].Kind)
	assert.Equal(t, MarkerGeocache, markers[3].Kind)
	assert.Nil(t, r.ActivePerson())
}

func TestScenario(t *testing.T) {
	s := scenarioStore()
	r := loaded(t, s)
	ctx := context.Background()

	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)
	assert.Equal(t, ColorBlack, geocacheColor(t, r, 10))
	assert.Equal(t, ColorRed, geocacheColor(t, r, 11))

	outcome, err := r.ToggleFoundByID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, FoundMarked, outcome)
	assert.True(t, s.found[models.FoundGeocache{PersonID: 1, GeocacheID: 11}])
	assert.Equal(t, ColorGreen, geocacheColor(t, r, 11))

	outcome, err = r.ToggleFoundByID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, FoundCleared, outcome)
	assert.Empty(t, s.found)
	assert.Equal(t, ColorRed, geocacheColor(t, r, 11))
}

func TestSelectPersonFadesOthers(t *testing.T) {
	r := loaded(t, scenarioStore())

	_, err := r.SelectPersonByID(2)
	require.NoError(t, err)

	p1 := findMarker(t, r, MarkerPerson, 1)
	p2 := findMarker(t, r, MarkerPerson, 2)
	assert.Equal(t, OpacityFaded, p1.Opacity)
	assert.Equal(t, OpacityFull, p2.Opacity)
	assert.Equal(t, ColorBlue, p1.Color)
	assert.Equal(t, ColorBlue, p2.Color)
}

func TestDeselectResetsMarkers(t *testing.T) {
	s := scenarioStore()
	s.found[models.FoundGeocache{PersonID: 1, GeocacheID: 11}] = true
	r := loaded(t, s)

	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)
	r.SelectPerson(nil)

	for _, m := range r.Markers() {
		assert.Equal(t, OpacityFull, m.Opacity)
		if m.Kind == MarkerPerson {
			assert.Equal(t, ColorBlue, m.Color)
		} else {
			assert.Equal(t, ColorGray, m.Color)
		}
	}

	_, err = r.SelectPersonByID(0)
	require.NoError(t, err)
	assert.Nil(t, r.ActivePerson())
}

func TestEveryGeocacheIsBlackGreenOrRed(t *testing.T) {
	s := newMemStore()
	s.persons = []models.Person{{ID: 1}, {ID: 2}, {ID: 3}}
	s.geocaches = []models.Geocache{
		{ID: 10, OwnerID: models.OwnerRef(1)},
		{ID: 11, OwnerID: models.OwnerRef(1)},
		{ID: 12, OwnerID: models.OwnerRef(2)},
		{ID: 13},
		{ID: 14, OwnerID: models.OwnerRef(3)},
	}
	s.found[models.FoundGeocache{PersonID: 1, GeocacheID: 12}] = true
	s.found[models.FoundGeocache{PersonID: 2, GeocacheID: 13}] = true
	r := loaded(t, s)

	for _, personID := range []int64{1, 2, 3} {
		_, err := r.SelectPersonByID(personID)
		require.NoError(t, err)

		for _, m := range r.Markers() {
			if m.Kind != MarkerGeocache {
				continue
			}
			assert.Contains(t, []Color{ColorBlack, ColorGreen, ColorRed}, m.Color,
				"person %d geocache %d", personID, m.EntityID())
		}
	}

	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)
	assert.Equal(t, ColorBlack, geocacheColor(t, r, 10))
	assert.Equal(t, ColorBlack, geocacheColor(t, r, 11))
	assert.Equal(t, ColorGreen, geocacheColor(t, r, 12))
	assert.Equal(t, ColorRed, geocacheColor(t, r, 13))
	assert.Equal(t, ColorRed, geocacheColor(t, r, 14))
}

func TestFoundOverridesPlaced(t *testing.T) {
	s := scenarioStore()
	// Imported data may record a person finding their own cache
	s.found[models.FoundGeocache{PersonID: 1, GeocacheID: 10}] = true
	r := loaded(t, s)

	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)
	assert.Equal(t, ColorGreen, geocacheColor(t, r, 10))
}

func TestToggleIsIdempotentOverTwoCalls(t *testing.T) {
	s := scenarioStore()
	s.found[models.FoundGeocache{PersonID: 2, GeocacheID: 10}] = true
	r := loaded(t, s)
	ctx := context.Background()

	_, err := r.SelectPersonByID(2)
	require.NoError(t, err)
	before := geocacheColor(t, r, 10)

	_, err = r.ToggleFoundByID(ctx, 10)
	require.NoError(t, err)
	assert.NotEqual(t, before, geocacheColor(t, r, 10))

	_, err = r.ToggleFoundByID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, before, geocacheColor(t, r, 10))
	assert.True(t, s.found[models.FoundGeocache{PersonID: 2, GeocacheID: 10}])
}

func TestToggleOwnGeocacheIsNoop(t *testing.T) {
	s := scenarioStore()
	r := loaded(t, s)

	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)

	outcome, err := r.ToggleFoundByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, FoundUnchanged, outcome)
	assert.Zero(t, s.writes)
	assert.Equal(t, ColorBlack, geocacheColor(t, r, 10))
}

func TestToggleWithoutActivePerson(t *testing.T) {
	s := scenarioStore()
	r := loaded(t, s)

	_, err := r.ToggleFoundByID(context.Background(), 11)
	assert.ErrorIs(t, err, ErrNoActivePerson)
	assert.Zero(t, s.writes)
}

func TestToggleUnknownGeocache(t *testing.T) {
	r := loaded(t, scenarioStore())
	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)

	_, err = r.ToggleFoundByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUnknownGeocache)
}

func TestSelectUnknownPerson(t *testing.T) {
	r := loaded(t, scenarioStore())

	_, err := r.SelectPersonByID(42)
	assert.ErrorIs(t, err, ErrUnknownPerson)
}

func TestStoreErrorsPropagateUnmodified(t *testing.T) {
	s := scenarioStore()
	r := loaded(t, s)
	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)

	boom := errors.New("database unavailable")
	s.failNext = boom

	_, err = r.ToggleFoundByID(context.Background(), 11)
	assert.Same(t, boom, err)
	assert.Empty(t, s.found)
	assert.Equal(t, ColorRed, geocacheColor(t, r, 11))

	s.failNext = boom
	assert.Same(t, boom, r.Load(context.Background()))
}

func TestAddGeocacheAttachesToOwner(t *testing.T) {
	r := loaded(t, scenarioStore())
	_, err := r.SelectPersonByID(1)
	require.NoError(t, err)

	r.AddGeocache(&models.Geocache{ID: 12, OwnerID: models.OwnerRef(1)})
	r.AddGeocache(&models.Geocache{ID: 13})

	assert.Equal(t, ColorBlack, geocacheColor(t, r, 12))
	assert.Equal(t, ColorRed, geocacheColor(t, r, 13))

	r.AddPerson(&models.Person{ID: 3})
	assert.Equal(t, OpacityFaded, findMarker(t, r, MarkerPerson, 3).Opacity)
}

func TestLoadKeepsActivePerson(t *testing.T) {
	s := scenarioStore()
	r := loaded(t, s)
	_, err := r.SelectPersonByID(2)
	require.NoError(t, err)

	require.NoError(t, r.Load(context.Background()))
	require.NotNil(t, r.ActivePerson())
	assert.Equal(t, int64(2), r.ActivePerson().ID)

	s.persons = s.persons[:1]
	require.NoError(t, r.Load(context.Background()))
	assert.Nil(t, r.ActivePerson())
}
