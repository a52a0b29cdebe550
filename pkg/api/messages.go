// Package api defines the MapService RPC contract: request and response
// messages, procedure names, and Connect client and handler constructors.
//
// Messages are plain structs encoded as JSON by Codec.
package api

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is a person's postal address.
type Address struct {
	Country      string `json:"country"`
	City         string `json:"city"`
	StreetName   string `json:"street_name"`
	StreetNumber int    `json:"street_number"`
}

// Person is a person as seen by clients.
type Person struct {
	Id          int64      `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Address     Address    `json:"address"`
	Coordinate  Coordinate `json:"coordinate"`
	GeocacheIds []int64    `json:"geocache_ids,omitempty"`
	FoundIds    []int64    `json:"found_ids,omitempty"`
}

// Geocache is a geocache as seen by clients. OwnerId is 0 for unowned caches.
type Geocache struct {
	Id         int64      `json:"id"`
	OwnerId    int64      `json:"owner_id,omitempty"`
	Coordinate Coordinate `json:"coordinate"`
	Contents   string     `json:"contents"`
	Message    string     `json:"message"`
}

// Marker kinds.
const (
	KindPerson   = "person"
	KindGeocache = "geocache"
)

// Marker is one pin to render.
type Marker struct {
	Kind       string     `json:"kind"`
	EntityId   int64      `json:"entity_id"`
	Coordinate Coordinate `json:"coordinate"`
	Color      string     `json:"color"`
	Opacity    float64    `json:"opacity"`
	Tooltip    string     `json:"tooltip"`
}

// MapView is the initial camera position.
type MapView struct {
	Center Coordinate `json:"center"`
	Zoom   int        `json:"zoom"`
}

type OpenSessionRequest struct{}

type OpenSessionResponse struct {
	SessionId string   `json:"session_id"`
	View      MapView  `json:"view"`
	Markers   []Marker `json:"markers"`
}

type CloseSessionRequest struct {
	SessionId string `json:"session_id"`
}

type CloseSessionResponse struct{}

type ListMarkersRequest struct {
	SessionId string `json:"session_id"`
}

// MarkersResponse carries the marker snapshot after an operation.
// ActivePersonId is 0 when no person is selected.
type MarkersResponse struct {
	ActivePersonId int64    `json:"active_person_id,omitempty"`
	Markers        []Marker `json:"markers"`
}

type SelectPersonRequest struct {
	SessionId string `json:"session_id"`
	// PersonId 0 clears the selection.
	PersonId int64 `json:"person_id"`
}

type ToggleFoundRequest struct {
	SessionId  string `json:"session_id"`
	GeocacheId int64  `json:"geocache_id"`
}

type ToggleFoundResponse struct {
	// Outcome is "marked", "cleared" or "unchanged".
	Outcome string `json:"outcome"`
	MarkersResponse
}

type AddPersonRequest struct {
	SessionId  string     `json:"session_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Address    Address    `json:"address"`
	Coordinate Coordinate `json:"coordinate"`
}

type AddPersonResponse struct {
	Person Person `json:"person"`
	MarkersResponse
}

// AddGeocacheRequest places a geocache. The owner is the session's active
// person, if any.
type AddGeocacheRequest struct {
	SessionId  string     `json:"session_id"`
	Coordinate Coordinate `json:"coordinate"`
	Contents   string     `json:"contents"`
	Message    string     `json:"message"`
}

type AddGeocacheResponse struct {
	Geocache Geocache `json:"geocache"`
	MarkersResponse
}

type ImportDatasetRequest struct {
	Data string `json:"data"`
}

type ImportDatasetResponse struct {
	Persons   int `json:"persons"`
	Geocaches int `json:"geocaches"`
	Found     int `json:"found"`
}

type ExportDatasetRequest struct{}

type ExportDatasetResponse struct {
	Data string `json:"data"`
}

type ResetDatasetRequest struct{}

type ResetDatasetResponse struct{}
