// Package models defines the core domain models for the geocaching map.
//
// # Models
//
//   - Person: someone who places and finds geocaches, pinned at their home address
//   - Geocache: a hidden cache at a coordinate, optionally owned by the person who placed it
//   - FoundGeocache: "this person has found this geocache" (at most one per pair)
//   - Dataset: the complete persisted state, used by import and export
//
// # Relationships
//
// Relationships are carried by integer IDs. The nested collections on Person
// and Geocache (Geocaches, Found) are populated by the storage layer when
// entities are listed, so callers never have to query them separately.
//
// A geocache's owner is set once, when the geocache is created, and never
// changes afterwards.
package models
