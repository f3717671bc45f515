package api

import (
	"net/http"
)

// The descriptor-export endpoints feed clients that match on-device: they
// pull the catalog embeddings once and run the similarity scan locally,
// using the server only for metadata and ingest.

// DescriptorsHandler serves one embedding per artwork, the first stored
// descriptor, keyed by artwork id.
func (app *App) DescriptorsHandler(w http.ResponseWriter, r *http.Request) {
	snap := app.Recognition.Engine().Snapshot()

	out := make(map[string][]float32, len(snap.Artworks))
	for _, d := range snap.Flat {
		if _, seen := out[d.ArtworkID]; seen {
			continue
		}
		out[d.ArtworkID] = d.Embedding
	}

	writeJSON(w, http.StatusOK, out)
}

// DescriptorsV2Handler serves every embedding per artwork.
func (app *App) DescriptorsV2Handler(w http.ResponseWriter, r *http.Request) {
	snap := app.Recognition.Engine().Snapshot()

	out := make(map[string][][]float32, len(snap.Artworks))
	for _, d := range snap.Flat {
		out[d.ArtworkID] = append(out[d.ArtworkID], d.Embedding)
	}

	writeJSON(w, http.StatusOK, out)
}

type descriptorMeta struct {
	ArtworkID    string    `json:"artwork_id"`
	DescriptorID string    `json:"descriptor_id"`
	ImagePath    string    `json:"image_path,omitempty"`
	Embedding    []float32 `json:"embedding"`
}

// DescriptorsMetaV2Handler serves the flat descriptor list with per-image
// metadata attached.
func (app *App) DescriptorsMetaV2Handler(w http.ResponseWriter, r *http.Request) {
	snap := app.Recognition.Engine().Snapshot()

	out := make([]descriptorMeta, 0, len(snap.Flat))
	for _, d := range snap.Flat {
		out = append(out, descriptorMeta{
			ArtworkID:    d.ArtworkID,
			DescriptorID: d.DescriptorID,
			ImagePath:    d.ImagePath,
			Embedding:    d.Embedding,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// HealthDBHandler probes the backing database directly, bypassing the
// in-memory snapshot, so a stale snapshot and a dead database are
// distinguishable.
func (app *App) HealthDBHandler(w http.ResponseWriter, r *http.Request) {
	var count int
	err := app.DB.Conn().QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM artworks").Scan(&count)
	if err != nil {
		msg := err.Error()
		if len(msg) > 200 {
			msg = msg[:200]
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"db":    app.DB.Type(),
			"error": msg,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"db":       app.DB.Type(),
		"artworks": count,
	})
}
