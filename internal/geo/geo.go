// Package geo implements the great-circle and point-in-polygon tests used by
// the proximity filter.
package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two
// lat/lon points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// PointInRing reports whether (lat, lon) lies inside the polygon ring using
// a ray cast along the parallel at lat. Vertices are [lon,lat] pairs in
// catalog order; the ring is treated as a simple closed loop and may be
// non-convex.
func PointInRing(lat, lon float64, ring [][2]float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// MinVertexDistanceKm returns the smallest haversine distance from the point
// to any vertex of the ring.
func MinVertexDistanceKm(lat, lon float64, ring [][2]float64) float64 {
	best := math.Inf(1)
	for _, v := range ring {
		if d := HaversineKm(lat, lon, v[1], v[0]); d < best {
			best = d
		}
	}
	return best
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
