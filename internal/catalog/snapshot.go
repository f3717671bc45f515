// Package catalog builds the read-only per-session view of the artwork
// database that matching runs against.
package catalog

import (
	"log"

	"github.com/artlens/artlens/internal/models"
)

// Entry is one matchable artwork: its identity, a single reference
// embedding, and an optional geofence.
type Entry struct {
	ID          string
	DisplayName string
	Embedding   []float32
	Geofence    *models.Geofence
}

// Key returns the identity used to detect recognition transitions: the id
// when present, otherwise the display name.
func (e Entry) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.DisplayName
}

// Snapshot is an immutable view of the catalog. Entries carry one embedding
// per artwork (the first descriptor) for the frame pipeline; Flat keeps
// every descriptor for one-shot match queries that score max-over-descriptors.
type Snapshot struct {
	Entries  []Entry
	Flat     []models.Descriptor
	Artworks map[string]models.Artwork
	Dim      int
}

// BuildSnapshot assembles a snapshot from the stored artworks. declaredDim
// is the dimension recorded at ingest time; when zero it is inferred from
// the first non-empty descriptor. Descriptors whose dimension disagrees are
// dropped from matching rather than treated as an error.
func BuildSnapshot(artworks []models.Artwork, declaredDim int) *Snapshot {
	snap := &Snapshot{
		Artworks: make(map[string]models.Artwork, len(artworks)),
		Dim:      declaredDim,
	}

	if snap.Dim == 0 {
		for _, art := range artworks {
			for _, d := range art.Descriptors {
				if len(d.Embedding) > 0 {
					snap.Dim = len(d.Embedding)
					break
				}
			}
			if snap.Dim != 0 {
				break
			}
		}
	}

	dropped := 0
	for _, art := range artworks {
		meta := art
		meta.Descriptors = nil
		snap.Artworks[art.ID] = meta

		first := true
		for _, d := range art.Descriptors {
			if len(d.Embedding) != snap.Dim || snap.Dim == 0 {
				dropped++
				continue
			}
			snap.Flat = append(snap.Flat, d)
			if first {
				snap.Entries = append(snap.Entries, Entry{
					ID:          art.ID,
					DisplayName: art.Title,
					Embedding:   d.Embedding,
					Geofence:    art.Geofence,
				})
				first = false
			}
		}
	}

	if dropped > 0 {
		log.Printf("[CATALOG] dropped %d descriptors with dim != %d", dropped, snap.Dim)
	}

	return snap
}
