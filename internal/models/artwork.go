package models

import (
	"regexp"
	"strings"
	"time"
)

type Artwork struct {
	ID           string            `json:"id"`
	Title        string            `json:"title,omitempty"`
	Artist       string            `json:"artist,omitempty"`
	Year         string            `json:"year,omitempty"`
	Museum       string            `json:"museum,omitempty"`
	Location     string            `json:"location,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	Geofence     *Geofence         `json:"geofence,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty"`
	Descriptors  []Descriptor      `json:"visual_descriptors,omitempty"`
}

// Descriptor is one reference embedding for an artwork, usually one per
// catalog photo of the piece.
type Descriptor struct {
	ArtworkID    string    `json:"artwork_id,omitempty"`
	DescriptorID string    `json:"id"`
	ImagePath    string    `json:"image_path,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

const (
	GeofencePoint   = "point"
	GeofencePolygon = "polygon"
)

// Geofence restricts matching of an artwork to users near it. The source
// data uses {lat,lon} for points but [lon,lat] pairs for polygon vertices;
// that ordering is preserved as-is.
type Geofence struct {
	Type string       `json:"type"`
	Lat  float64      `json:"lat,omitempty"`
	Lon  float64      `json:"lon,omitempty"`
	Ring [][2]float64 `json:"ring,omitempty"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a stable artwork id from a title.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "opera"
	}
	return s
}
