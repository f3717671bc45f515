package catalog

import (
	"testing"

	"github.com/artlens/artlens/internal/models"
)

func TestBuildSnapshot_FirstDescriptorPerArtwork(t *testing.T) {
	artworks := []models.Artwork{
		{
			ID:    "gioconda",
			Title: "La Gioconda",
			Descriptors: []models.Descriptor{
				{ArtworkID: "gioconda", DescriptorID: "main#0", Embedding: []float32{1, 0}},
				{ArtworkID: "gioconda", DescriptorID: "main#1", Embedding: []float32{0, 1}},
			},
		},
	}

	snap := BuildSnapshot(artworks, 2)

	if len(snap.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap.Entries))
	}
	if snap.Entries[0].Embedding[0] != 1 {
		t.Errorf("expected first descriptor's embedding, got %v", snap.Entries[0].Embedding)
	}
	if len(snap.Flat) != 2 {
		t.Errorf("expected 2 flat descriptors, got %d", len(snap.Flat))
	}
}

func TestBuildSnapshot_DimMismatchExcluded(t *testing.T) {
	artworks := []models.Artwork{
		{
			ID:    "a",
			Title: "A",
			Descriptors: []models.Descriptor{
				{ArtworkID: "a", DescriptorID: "main#0", Embedding: []float32{1, 0, 0}},
			},
		},
		{
			ID:    "b",
			Title: "B",
			Descriptors: []models.Descriptor{
				{ArtworkID: "b", DescriptorID: "main#0", Embedding: []float32{1, 0}},
			},
		},
	}

	snap := BuildSnapshot(artworks, 2)

	if snap.Dim != 2 {
		t.Fatalf("expected dim 2, got %d", snap.Dim)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].ID != "b" {
		t.Errorf("expected only entry b, got %+v", snap.Entries)
	}
	// Metadata survives even when every descriptor was dropped
	if _, ok := snap.Artworks["a"]; !ok {
		t.Error("expected artwork a metadata in snapshot")
	}
}

func TestBuildSnapshot_InfersDim(t *testing.T) {
	artworks := []models.Artwork{
		{
			ID: "a",
			Descriptors: []models.Descriptor{
				{ArtworkID: "a", DescriptorID: "main#0", Embedding: []float32{1, 0, 0, 0}},
			},
		},
	}

	snap := BuildSnapshot(artworks, 0)
	if snap.Dim != 4 {
		t.Errorf("expected inferred dim 4, got %d", snap.Dim)
	}
}

func TestEntryKey(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"id wins", Entry{ID: "x", DisplayName: "The X"}, "x"},
		{"falls back to display name", Entry{DisplayName: "The X"}, "The X"},
		{"empty", Entry{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}
