package reconciler

import "github.com/mmynk/geocaching/internal/models"

// Color is the fill color of a marker.
type Color string

const (
	ColorBlue  Color = "blue"
	ColorGray  Color = "gray"
	ColorBlack Color = "black"
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// Opacity levels for person markers.
const (
	OpacityFull  = 1.0
	OpacityFaded = 0.5
)

// MarkerKind tells which entity a marker projects.
type MarkerKind int

const (
	MarkerPerson MarkerKind = iota + 1
	MarkerGeocache
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerPerson:
		return "person"
	case MarkerGeocache:
		return "geocache"
	default:
		return "unknown"
	}
}

// Marker is the transient map projection of a person or a geocache.
// Exactly one of Person and Geocache is set, according to Kind.
type Marker struct {
	Kind     MarkerKind
	Person   *models.Person
	Geocache *models.Geocache

	Color   Color
	Opacity float64
}

// EntityID returns the ID of the backing person or geocache.
func (m Marker) EntityID() int64 {
	if m.Kind == MarkerPerson {
		return m.Person.ID
	}
	return m.Geocache.ID
}

// Coordinate returns where the marker is pinned.
func (m Marker) Coordinate() models.Coordinate {
	if m.Kind == MarkerPerson {
		return m.Person.Coordinate
	}
	return m.Geocache.Coordinate
}

// Tooltip returns the hover text of the backing entity.
func (m Marker) Tooltip() string {
	if m.Kind == MarkerPerson {
		return m.Person.Tooltip()
	}
	return m.Geocache.Tooltip()
}

func personMarker(p *models.Person) *Marker {
	return &Marker{Kind: MarkerPerson, Person: p, Color: ColorBlue, Opacity: OpacityFull}
}

func geocacheMarker(g *models.Geocache) *Marker {
	return &Marker{Kind: MarkerGeocache, Geocache: g, Color: ColorGray, Opacity: OpacityFull}
}
