package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", app.HealthHandler)
	r.Get("/health_db", app.HealthDBHandler)
	r.Get("/catalog", app.CatalogHandler)
	r.Get("/descriptors", app.DescriptorsHandler)
	r.Get("/descriptors_v2", app.DescriptorsV2Handler)
	r.Get("/descriptors_meta_v2", app.DescriptorsMetaV2Handler)
	r.Get("/artworks/{id}", app.ArtworkDetailHandler)
	r.Post("/match", app.MatchHandler)
	r.Post("/log_perf", app.PerfLogHandler)

	r.Post("/artworks", app.UpsertArtworkHandler)
	r.Delete("/artworks/{id}", app.DeleteArtworkHandler)
	r.Delete("/artworks/{id}/descriptors/{descriptorID}", app.DeleteDescriptorHandler)
	r.Post("/artworks/{id}/images", app.UploadImageHandler)

	r.Post("/location", app.PublishLocationHandler)
	r.Post("/sessions", app.StartSessionHandler)
	r.Post("/sessions/{sessionID}/frames", app.ProcessFrameHandler)
	r.Post("/sessions/{sessionID}/reset", app.ResetSessionHandler)
	r.Delete("/sessions/{sessionID}", app.StopSessionHandler)
	r.Get("/sessions/{sessionID}/events", app.SessionEventsHandler)

	return r
}
