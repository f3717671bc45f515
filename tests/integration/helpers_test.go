package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/artlens/artlens/internal/api"
	"github.com/artlens/artlens/internal/database"
	"github.com/artlens/artlens/internal/recognition"
	"github.com/artlens/artlens/internal/storage"
)

const adminToken = "integration-admin-token"

type TestServer struct {
	Server      *httptest.Server
	App         *api.App
	DB          *database.DB
	ArtworkRepo *database.ArtworkRepository
	TempDir     string
}

func setupTestServer(t *testing.T) *TestServer {
	// Create temp directory for uploads and the database
	tempDir, err := os.MkdirTemp("", "artlens_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	uploadDir := filepath.Join(tempDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		t.Fatalf("Failed to create upload dir: %v", err)
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	dbConfig := database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "test.db"),
	}
	db, err := database.NewDB(dbConfig)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	artworkRepo := database.NewArtworkRepository(db)

	app := &api.App{
		Storage:       localStorage,
		DB:            db,
		ArtworkRepo:   artworkRepo,
		Recognition:   recognition.NewService(nil, nil, recognition.Config{}),
		AdminToken:    adminToken,
		MaxUploadSize: 10 * 1024 * 1024, // 10MB
	}

	server := httptest.NewServer(api.NewRouter(app))

	return &TestServer{
		Server:      server,
		App:         app,
		DB:          db,
		ArtworkRepo: artworkRepo,
		TempDir:     tempDir,
	}
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.DB.Close()
	os.RemoveAll(ts.TempDir)
}

func postJSON(t *testing.T, url string, body interface{}, token string) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req, err := http.NewRequest("POST", url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// uploadTestArtwork pushes one artwork with a single descriptor through the
// admin API so the snapshot refresh path is exercised too.
func uploadTestArtwork(t *testing.T, ts *TestServer, id, title string, embedding []float32) {
	t.Helper()

	resp := postJSON(t, ts.Server.URL+"/artworks", map[string]interface{}{
		"id":    id,
		"title": title,
		"descriptions": map[string]string{
			"it": title + " (descrizione)",
			"en": title + " (description)",
		},
		"visual_descriptors": []map[string]interface{}{
			{"embedding": embedding},
		},
	}, adminToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Failed to upload artwork %s: status %d", id, resp.StatusCode)
	}
}
