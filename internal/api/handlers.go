package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/artlens/artlens/internal/catalog"
	"github.com/artlens/artlens/internal/database"
	"github.com/artlens/artlens/internal/models"
	"github.com/artlens/artlens/internal/recognition"
	"github.com/artlens/artlens/internal/storage"
	"github.com/artlens/artlens/internal/vector"
)

type App struct {
	Storage       storage.Storage
	DB            *database.DB
	ArtworkRepo   *database.ArtworkRepository
	Recognition   *recognition.Service
	AdminToken    string
	MaxUploadSize int64
}

// RefreshSnapshot rebuilds the catalog view the matching pipeline runs
// against. Called at startup and after every admin mutation.
func (app *App) RefreshSnapshot(r *http.Request) error {
	ctx := r.Context()

	artworks, err := app.ArtworkRepo.List(ctx)
	if err != nil {
		return err
	}
	dim, err := app.ArtworkRepo.GetDim(ctx)
	if err != nil {
		return err
	}

	snap := catalog.BuildSnapshot(artworks, dim)
	app.Recognition.Engine().SetSnapshot(snap)
	log.Printf("[CATALOG] snapshot refreshed: artworks=%d descriptors=%d dim=%d",
		len(snap.Artworks), len(snap.Flat), snap.Dim)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (app *App) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if app.AdminToken == "" || r.Header.Get("X-Admin-Token") != app.AdminToken {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	snap := app.Recognition.Engine().Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"count":      len(snap.Flat),
		"dim":        snap.Dim,
		"backend_db": app.DB.Type(),
	})
}

type catalogItem struct {
	ID           string            `json:"id"`
	Title        string            `json:"title,omitempty"`
	Artist       string            `json:"artist,omitempty"`
	Year         string            `json:"year,omitempty"`
	Museum       string            `json:"museum,omitempty"`
	Location     string            `json:"location,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	ImageCount   *int              `json:"image_count,omitempty"`
}

func (app *App) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	snap := app.Recognition.Engine().Snapshot()
	withCounts := r.URL.Query().Get("with_image_counts") == "true"

	counts := make(map[string]int)
	if withCounts {
		for _, d := range snap.Flat {
			counts[d.ArtworkID]++
		}
	}

	items := make([]catalogItem, 0, len(snap.Artworks))
	for id, art := range snap.Artworks {
		item := catalogItem{
			ID:           id,
			Title:        art.Title,
			Artist:       art.Artist,
			Year:         art.Year,
			Museum:       art.Museum,
			Location:     art.Location,
			Descriptions: art.Descriptions,
		}
		if withCounts {
			c := counts[id]
			item.ImageCount = &c
		}
		items = append(items, item)
	}

	// Titles sort case-insensitively, empties last
	sort.Slice(items, func(i, j int) bool {
		ei, ej := items[i].Title == "", items[j].Title == ""
		if ei != ej {
			return ej
		}
		ti, tj := strings.ToLower(items[i].Title), strings.ToLower(items[j].Title)
		if ti != tj {
			return ti < tj
		}
		return items[i].ID < items[j].ID
	})

	writeJSON(w, http.StatusOK, items)
}

func (app *App) ArtworkDetailHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	art, err := app.ArtworkRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load artwork")
		return
	}
	if art == nil {
		writeError(w, http.StatusNotFound, "artwork not found")
		return
	}

	type descriptorItem struct {
		DescriptorID string `json:"descriptor_id"`
		ImagePath    string `json:"image_path,omitempty"`
	}
	descriptors := make([]descriptorItem, 0, len(art.Descriptors))
	for _, d := range art.Descriptors {
		descriptors = append(descriptors, descriptorItem{
			DescriptorID: d.DescriptorID,
			ImagePath:    d.ImagePath,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           art.ID,
		"title":        art.Title,
		"artist":       art.Artist,
		"year":         art.Year,
		"museum":       art.Museum,
		"location":     art.Location,
		"descriptions": art.Descriptions,
		"geofence":     art.Geofence,
		"descriptors":  descriptors,
	})
}

type matchRequest struct {
	Embedding []float32 `json:"embedding"`
	TopK      int       `json:"top_k"`
	Threshold float64   `json:"threshold"`
	Lang      string    `json:"lang"`
}

type matchItem struct {
	ArtworkID    string  `json:"artwork_id"`
	DescriptorID string  `json:"descriptor_id,omitempty"`
	Title        string  `json:"title,omitempty"`
	Artist       string  `json:"artist,omitempty"`
	Description  string  `json:"description,omitempty"`
	Confidence   float64 `json:"confidence"`
	ImagePath    string  `json:"image_path,omitempty"`
}

// MatchHandler is the one-shot query path: score every stored descriptor,
// keep the best per artwork, rank and localize. The stabilized per-frame
// path lives under /sessions.
func (app *App) MatchHandler(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap := app.Recognition.Engine().Snapshot()
	if len(snap.Flat) == 0 {
		writeError(w, http.StatusServiceUnavailable, "empty database")
		return
	}
	if len(req.Embedding) != snap.Dim {
		writeError(w, http.StatusBadRequest, "embedding dim mismatch")
		return
	}

	vector.Normalize(req.Embedding)

	type scored struct {
		score      float64
		descriptor models.Descriptor
	}
	bestPerArtwork := make(map[string]scored)
	for _, d := range snap.Flat {
		s := vector.Dot(req.Embedding, d.Embedding)
		if s < req.Threshold {
			continue
		}
		cur, ok := bestPerArtwork[d.ArtworkID]
		if !ok || s > cur.score {
			bestPerArtwork[d.ArtworkID] = scored{score: s, descriptor: d}
		}
	}

	ranked := make([]scored, 0, len(bestPerArtwork))
	for _, v := range bestPerArtwork {
		ranked = append(ranked, v)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].descriptor.ArtworkID < ranked[j].descriptor.ArtworkID
	})

	topK := req.TopK
	if topK < 1 {
		topK = 1
	}
	if topK > 50 {
		topK = 50
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	lang := strings.ToLower(req.Lang)
	if len(lang) > 2 {
		lang = lang[:2]
	}

	matches := make([]matchItem, 0, len(ranked))
	for _, s := range ranked {
		art := snap.Artworks[s.descriptor.ArtworkID]
		matches = append(matches, matchItem{
			ArtworkID:    s.descriptor.ArtworkID,
			DescriptorID: s.descriptor.DescriptorID,
			Title:        art.Title,
			Artist:       art.Artist,
			Description:  pickDescription(art.Descriptions, lang),
			Confidence:   s.score,
			ImagePath:    s.descriptor.ImagePath,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// pickDescription prefers the requested language, then Italian, then
// English, then anything.
func pickDescription(descriptions map[string]string, lang string) string {
	if len(descriptions) == 0 {
		return ""
	}
	if lang != "" && descriptions[lang] != "" {
		return descriptions[lang]
	}
	if descriptions["it"] != "" {
		return descriptions["it"]
	}
	if descriptions["en"] != "" {
		return descriptions["en"]
	}
	keys := make([]string, 0, len(descriptions))
	for k := range descriptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return descriptions[keys[0]]
}

func (app *App) UpsertArtworkHandler(w http.ResponseWriter, r *http.Request) {
	if !app.requireAdmin(w, r) {
		return
	}

	var art models.Artwork
	if err := json.NewDecoder(r.Body).Decode(&art); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := app.ArtworkRepo.Upsert(r.Context(), &art); err != nil {
		if errors.Is(err, database.ErrDimMismatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error upserting artwork: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to persist")
		return
	}

	if err := app.RefreshSnapshot(r); err != nil {
		log.Printf("Error refreshing snapshot after upsert: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": art.ID})
}

func (app *App) DeleteArtworkHandler(w http.ResponseWriter, r *http.Request) {
	if !app.requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	deleted, err := app.ArtworkRepo.Delete(r.Context(), id)
	if err != nil {
		log.Printf("Error deleting artwork: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "artwork not found")
		return
	}

	if err := app.RefreshSnapshot(r); err != nil {
		log.Printf("Error refreshing snapshot after delete: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "deleted": id})
}

func (app *App) DeleteDescriptorHandler(w http.ResponseWriter, r *http.Request) {
	if !app.requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	descriptorID := chi.URLParam(r, "descriptorID")

	deleted, err := app.ArtworkRepo.DeleteDescriptor(r.Context(), id, descriptorID)
	if err != nil {
		log.Printf("Error deleting descriptor: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "descriptor not found")
		return
	}

	if err := app.RefreshSnapshot(r); err != nil {
		log.Printf("Error refreshing snapshot after descriptor delete: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "deleted": descriptorID})
}

// UploadImageHandler stores a reference photo for a descriptor and renders
// its webp thumbnail.
func (app *App) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if !app.requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to get file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "only image files are allowed")
		return
	}

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		log.Printf("Error saving image: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	thumbName, err := app.Storage.Thumbnail(filename)
	if err != nil {
		log.Printf("Error rendering thumbnail for %s: %v", filename, err)
	}

	if descriptorID := r.FormValue("descriptor_id"); descriptorID != "" {
		if err := app.ArtworkRepo.SetDescriptorImage(r.Context(), id, descriptorID, filename); err != nil {
			log.Printf("Error linking image to descriptor: %v", err)
		} else if err := app.RefreshSnapshot(r); err != nil {
			log.Printf("Error refreshing snapshot after image upload: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"filename":  filename,
		"thumbnail": thumbName,
	})
}

type perfPayload struct {
	Meta struct {
		Config    json.RawMessage `json:"config"`
		TFBackend string          `json:"tfBackend"`
	} `json:"meta"`
	Data struct {
		T     []float64 `json:"t"`
		Crop  []float64 `json:"crop"`
		Embed []float64 `json:"embed"`
		Match []float64 `json:"match"`
	} `json:"data"`
	SessionID string `json:"sessionId"`
	Seq       int    `json:"seq"`
}

// PerfLogHandler receives frontend perf batches and prints a summary.
func (app *App) PerfLogHandler(w http.ResponseWriter, r *http.Request) {
	var payload perfPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	mean := func(xs []float64) float64 {
		if len(xs) == 0 {
			return 0
		}
		var sum float64
		for _, x := range xs {
			sum += x
		}
		return sum / float64(len(xs))
	}

	n := len(payload.Data.T)
	log.Printf("[PerfLog] session=%s seq=%d samples=%d mean(ms) crop=%.2f embed=%.2f match=%.2f backend=%s",
		payload.SessionID, payload.Seq, n,
		mean(payload.Data.Crop), mean(payload.Data.Embed), mean(payload.Data.Match),
		payload.TFBackendOrDash())

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "accepted": n})
}

func (p perfPayload) TFBackendOrDash() string {
	if p.Meta.TFBackend == "" {
		return "-"
	}
	return p.Meta.TFBackend
}
