package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artlens/artlens/internal/recognition"
)

func (app *App) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := app.Recognition.StartSession()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": session.ID,
		"started_at": session.StartedAt,
	})
}

// locationPayload keeps lat/lon as pointers so a fix that omits them is
// distinguishable from one at coordinate zero. A payload without both is
// treated as no location, never as (0,0).
type locationPayload struct {
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	AccuracyMeters float64  `json:"accuracy_m,omitempty"`
}

func (p *locationPayload) toLocation() *recognition.Location {
	if p == nil || p.Lat == nil || p.Lon == nil {
		return nil
	}
	return &recognition.Location{
		Lat:            *p.Lat,
		Lon:            *p.Lon,
		AccuracyMeters: p.AccuracyMeters,
	}
}

func (app *App) PublishLocationHandler(w http.ResponseWriter, r *http.Request) {
	var payload locationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid location")
		return
	}

	loc := payload.toLocation()
	if loc == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	app.Recognition.PublishLocation(*loc)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type frameRequest struct {
	Detections  []recognition.Detection `json:"detections"`
	Location    *locationPayload        `json:"location,omitempty"`
	TimestampMs int64                   `json:"timestamp_ms,omitempty"`
}

type matchOut struct {
	ArtworkID  string          `json:"artwork_id"`
	Title      string          `json:"title,omitempty"`
	Confidence float64         `json:"confidence"`
	Box        recognition.Box `json:"box"`
}

type frameResponse struct {
	State             string     `json:"state"`
	ActiveMatch       *matchOut  `json:"active_match,omitempty"`
	AllVisibleMatches []matchOut `json:"all_visible_matches"`
	NewlyRecognized   *matchOut  `json:"newly_recognized,omitempty"`
}

// ProcessFrameHandler runs one recognition tick for the session and returns
// the stabilized output.
func (app *App) ProcessFrameHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var now time.Time
	if req.TimestampMs > 0 {
		now = time.UnixMilli(req.TimestampMs)
	}

	out, err := app.Recognition.ProcessFrame(sessionID, req.Detections, req.Location.toLocation(), now)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	resp := frameResponse{
		State:             out.State.String(),
		AllVisibleMatches: make([]matchOut, 0, len(out.AllVisibleMatches)),
	}
	for _, m := range out.AllVisibleMatches {
		resp.AllVisibleMatches = append(resp.AllVisibleMatches, toMatchOut(m))
	}
	if out.ActiveMatch != nil {
		m := toMatchOut(*out.ActiveMatch)
		resp.ActiveMatch = &m
	}
	if out.NewlyRecognized != nil {
		resp.NewlyRecognized = &matchOut{
			ArtworkID: out.NewlyRecognized.Entry.ID,
			Title:     out.NewlyRecognized.Entry.DisplayName,
			Box:       out.NewlyRecognized.Box,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func toMatchOut(m recognition.Match) matchOut {
	return matchOut{
		ArtworkID:  m.Entry.ID,
		Title:      m.Entry.DisplayName,
		Confidence: m.Confidence,
		Box:        m.Box,
	}
}

func (app *App) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := app.Recognition.ResetSession(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *App) StopSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := app.Recognition.StopSession(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SessionEventsHandler streams recognition events for a session over SSE.
// One "recognized" event is emitted per identity transition.
func (app *App) SessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, exists := app.Recognition.GetSession(sessionID)
	if !exists {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	clientGone := r.Context().Done()

	for {
		select {
		case update, ok := <-session.Updates:
			if !ok {
				return
			}

			data, err := json.Marshal(update.Data)
			if err != nil {
				log.Printf("Error marshaling update: %v", err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Type, string(data))
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}
