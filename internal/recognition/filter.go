package recognition

import (
	"fmt"
	"log"

	"github.com/artlens/artlens/internal/catalog"
	"github.com/artlens/artlens/internal/geo"
	"github.com/artlens/artlens/internal/models"
)

// FilterByProximity reduces entries to those whose geofence admits the user
// location. Without a location the whole catalog is returned and matching
// proceeds catalog-wide; with one, entries that carry no geofence (or an
// unknown geometry type) are excluded. A malformed geofence never aborts
// matching: the unfiltered set is returned and a warning logged.
func FilterByProximity(entries []catalog.Entry, loc *Location, radiusKm float64) []catalog.Entry {
	if loc == nil {
		return entries
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	filtered := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		ok, err := withinGeofence(e.Geofence, loc, radiusKm)
		if err != nil {
			log.Printf("[FILTER] malformed geofence for %q, matching catalog-wide: %v", e.Key(), err)
			return entries
		}
		if ok {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func withinGeofence(g *models.Geofence, loc *Location, radiusKm float64) (bool, error) {
	if g == nil {
		return false, nil
	}

	switch g.Type {
	case models.GeofencePoint:
		return geo.HaversineKm(loc.Lat, loc.Lon, g.Lat, g.Lon) <= radiusKm, nil
	case models.GeofencePolygon:
		if len(g.Ring) < 3 {
			return false, fmt.Errorf("polygon ring has %d vertices", len(g.Ring))
		}
		if geo.PointInRing(loc.Lat, loc.Lon, g.Ring) {
			return true, nil
		}
		// Loose fallback so users just outside an irregular outline still
		// match: close enough to any vertex counts.
		return geo.MinVertexDistanceKm(loc.Lat, loc.Lon, g.Ring) <= radiusKm, nil
	default:
		return false, nil
	}
}
