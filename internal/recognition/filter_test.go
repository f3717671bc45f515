package recognition

import (
	"testing"

	"github.com/artlens/artlens/internal/catalog"
	"github.com/artlens/artlens/internal/geo"
	"github.com/artlens/artlens/internal/models"
)

// Milan Duomo area, roughly
const (
	duomoLat = 45.4642
	duomoLon = 9.1900
)

func pointEntry(id string, lat, lon float64) catalog.Entry {
	return catalog.Entry{
		ID:          id,
		DisplayName: id,
		Embedding:   []float32{1, 0},
		Geofence:    &models.Geofence{Type: models.GeofencePoint, Lat: lat, Lon: lon},
	}
}

func TestFilterByProximity_NoLocationReturnsAll(t *testing.T) {
	entries := []catalog.Entry{
		pointEntry("near", duomoLat, duomoLon),
		{ID: "nofence", DisplayName: "nofence", Embedding: []float32{0, 1}},
	}

	got := FilterByProximity(entries, nil, 0.5)
	if len(got) != 2 {
		t.Errorf("expected all entries without location, got %d", len(got))
	}
}

func TestFilterByProximity_PointGeofence(t *testing.T) {
	loc := &Location{Lat: duomoLat, Lon: duomoLon}
	entries := []catalog.Entry{
		pointEntry("here", duomoLat, duomoLon),
		pointEntry("two-km-away", duomoLat+0.018, duomoLon), // ~2 km north
	}

	got := FilterByProximity(entries, loc, 0.5)
	if len(got) != 1 || got[0].ID != "here" {
		t.Errorf("expected only the nearby entry, got %+v", ids(got))
	}
}

func TestFilterByProximity_BoundaryInclusive(t *testing.T) {
	loc := &Location{Lat: duomoLat, Lon: duomoLon}

	// Place an entry, measure its actual distance, then filter with exactly
	// that radius: the boundary is inclusive.
	e := pointEntry("edge", duomoLat+0.004, duomoLon)
	d := geo.HaversineKm(loc.Lat, loc.Lon, e.Geofence.Lat, e.Geofence.Lon)

	got := FilterByProximity([]catalog.Entry{e}, loc, d)
	if len(got) != 1 {
		t.Errorf("entry at exactly radius distance should be included")
	}
}

func TestFilterByProximity_NoGeofenceExcludedWithLocation(t *testing.T) {
	loc := &Location{Lat: duomoLat, Lon: duomoLon}
	entries := []catalog.Entry{
		{ID: "nofence", DisplayName: "nofence", Embedding: []float32{1, 0}},
	}

	got := FilterByProximity(entries, loc, 0.5)
	if len(got) != 0 {
		t.Errorf("entries without geofence should be excluded when location known")
	}
}

func TestFilterByProximity_PolygonInside(t *testing.T) {
	loc := &Location{Lat: duomoLat, Lon: duomoLon}
	ring := [][2]float64{
		{duomoLon - 0.01, duomoLat - 0.01},
		{duomoLon + 0.01, duomoLat - 0.01},
		{duomoLon + 0.01, duomoLat + 0.01},
		{duomoLon - 0.01, duomoLat + 0.01},
	}
	entries := []catalog.Entry{{
		ID:        "piazza",
		Embedding: []float32{1, 0},
		Geofence:  &models.Geofence{Type: models.GeofencePolygon, Ring: ring},
	}}

	got := FilterByProximity(entries, loc, 0.5)
	if len(got) != 1 {
		t.Error("expected user inside polygon to match")
	}
}

func TestFilterByProximity_PolygonVertexFallback(t *testing.T) {
	// User just outside the ring but within radius of a vertex
	ring := [][2]float64{
		{duomoLon, duomoLat},
		{duomoLon + 0.01, duomoLat},
		{duomoLon + 0.01, duomoLat + 0.01},
	}
	loc := &Location{Lat: duomoLat - 0.002, Lon: duomoLon} // ~220m south of first vertex
	entries := []catalog.Entry{{
		ID:        "irregular",
		Embedding: []float32{1, 0},
		Geofence:  &models.Geofence{Type: models.GeofencePolygon, Ring: ring},
	}}

	got := FilterByProximity(entries, loc, 0.5)
	if len(got) != 1 {
		t.Error("expected vertex-distance fallback to include entry")
	}
}

func TestFilterByProximity_MalformedGeometryFallsOpen(t *testing.T) {
	loc := &Location{Lat: duomoLat, Lon: duomoLon}
	entries := []catalog.Entry{
		pointEntry("far", 0, 0),
		{
			ID:        "broken",
			Embedding: []float32{1, 0},
			Geofence:  &models.Geofence{Type: models.GeofencePolygon, Ring: [][2]float64{{1, 1}}},
		},
	}

	got := FilterByProximity(entries, loc, 0.5)
	if len(got) != len(entries) {
		t.Errorf("malformed geometry should fall back to the unfiltered set, got %d", len(got))
	}
}

func TestFilterByProximity_UnknownGeometryExcluded(t *testing.T) {
	loc := &Location{Lat: duomoLat, Lon: duomoLon}
	entries := []catalog.Entry{{
		ID:        "weird",
		Embedding: []float32{1, 0},
		Geofence:  &models.Geofence{Type: "multipoint"},
	}}

	got := FilterByProximity(entries, loc, 0.5)
	if len(got) != 0 {
		t.Error("unknown geometry types should be excluded, not fatal")
	}
}

func ids(entries []catalog.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
