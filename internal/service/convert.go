package service

import (
	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/reconciler"
	"github.com/mmynk/geocaching/pkg/api"
)

func toCoordinate(c models.Coordinate) api.Coordinate {
	return api.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

func fromCoordinate(c api.Coordinate) models.Coordinate {
	return models.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

func toPerson(p *models.Person) api.Person {
	out := api.Person{
		Id:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Address: api.Address{
			Country:      p.Address.Country,
			City:         p.Address.City,
			StreetName:   p.Address.StreetName,
			StreetNumber: p.Address.StreetNumber,
		},
		Coordinate: toCoordinate(p.Coordinate),
	}
	for _, g := range p.Geocaches {
		out.GeocacheIds = append(out.GeocacheIds, g.ID)
	}
	for _, f := range p.Found {
		out.FoundIds = append(out.FoundIds, f.GeocacheID)
	}
	return out
}

func toGeocache(g *models.Geocache) api.Geocache {
	out := api.Geocache{
		Id:         g.ID,
		Coordinate: toCoordinate(g.Coordinate),
		Contents:   g.Contents,
		Message:    g.Message,
	}
	if g.OwnerID != nil {
		out.OwnerId = *g.OwnerID
	}
	return out
}

func toMarkers(markers []reconciler.Marker) []api.Marker {
	out := make([]api.Marker, 0, len(markers))
	for _, m := range markers {
		out = append(out, api.Marker{
			Kind:       toKind(m.Kind),
			EntityId:   m.EntityID(),
			Coordinate: toCoordinate(m.Coordinate()),
			Color:      string(m.Color),
			Opacity:    m.Opacity,
			Tooltip:    m.Tooltip(),
		})
	}
	return out
}

func toKind(k reconciler.MarkerKind) string {
	if k == reconciler.MarkerPerson {
		return api.KindPerson
	}
	return api.KindGeocache
}

// markersResponse snapshots the markers and selection of rec.
func markersResponse(rec *reconciler.Reconciler) api.MarkersResponse {
	resp := api.MarkersResponse{Markers: toMarkers(rec.Markers())}
	if active := rec.ActivePerson(); active != nil {
		resp.ActivePersonId = active.ID
	}
	return resp
}
