package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/artlens/artlens/internal/api"
	"github.com/artlens/artlens/internal/catalog"
	"github.com/artlens/artlens/internal/database"
	"github.com/artlens/artlens/internal/recognition"
	"github.com/artlens/artlens/internal/storage"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	maxUploadSize := os.Getenv("MAX_UPLOAD_SIZE")
	if maxUploadSize == "" {
		maxUploadSize = "10485760"
	}
	maxSize, err := strconv.ParseInt(maxUploadSize, 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_UPLOAD_SIZE:", err)
	}

	// Database configuration
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var dbConfig database.Config
	dbConfig.Type = dbType

	if dbType == "postgres" {
		dbConfig.Host = os.Getenv("DB_HOST")
		if dbConfig.Host == "" {
			dbConfig.Host = "localhost"
		}

		dbPortStr := os.Getenv("DB_PORT")
		if dbPortStr == "" {
			dbPortStr = "5432"
		}
		dbPort, err := strconv.Atoi(dbPortStr)
		if err != nil {
			log.Fatal("Invalid DB_PORT:", err)
		}
		dbConfig.Port = dbPort

		dbConfig.User = os.Getenv("DB_USER")
		if dbConfig.User == "" {
			dbConfig.User = "artlens"
		}

		dbConfig.Password = os.Getenv("DB_PASSWORD")
		if dbConfig.Password == "" {
			dbConfig.Password = "artlens_dev"
		}

		dbConfig.Name = os.Getenv("DB_NAME")
		if dbConfig.Name == "" {
			dbConfig.Name = "artlens"
		}
	} else {
		dbConfig.SQLitePath = os.Getenv("DB_PATH")
		if dbConfig.SQLitePath == "" {
			dbConfig.SQLitePath = "./artlens.db"
		}
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	if dbType == "postgres" {
		migrationsPath := os.Getenv("MIGRATIONS_PATH")
		if migrationsPath == "" {
			migrationsPath = "./migrations"
		}
		log.Printf("Running database migrations from %s", migrationsPath)
		if err := db.RunMigrations(migrationsPath); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
	}

	artworkRepo := database.NewArtworkRepository(db)

	cfg := recognition.Config{
		CosineThreshold:  envFloat("COSINE_THRESHOLD", 0),
		MinBoxScore:      envFloat("MIN_BOX_SCORE", 0),
		MaxBoxesPerFrame: envInt("MAX_BOXES_PER_FRAME", 0),
		HysteresisDrop:   envFloat("HYSTERESIS_DROP", 0),
		RadiusKm:         envFloat("PROXIMITY_RADIUS_KM", 0),
	}
	if ms := envInt("STICKY_MS", 0); ms > 0 {
		cfg.StickyWindow = time.Duration(ms) * time.Millisecond
	}

	snap, err := loadSnapshot(artworkRepo)
	if err != nil {
		log.Fatal("Failed to load catalog:", err)
	}
	log.Printf("Catalog loaded: artworks=%d descriptors=%d dim=%d",
		len(snap.Artworks), len(snap.Flat), snap.Dim)

	recognitionService := recognition.NewService(snap, recognition.LinearMatcher{}, cfg)

	app := &api.App{
		Storage:       localStorage,
		DB:            db,
		ArtworkRepo:   artworkRepo,
		Recognition:   recognitionService,
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		MaxUploadSize: maxSize,
	}

	router := api.NewRouter(app)

	log.Printf("Server starting on port %s", port)
	log.Printf("Upload directory: %s", uploadDir)
	log.Printf("Database type: %s", dbType)
	if dbType == "postgres" {
		log.Printf("Database connection: %s@%s:%d/%s", dbConfig.User, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	} else {
		log.Printf("Database path: %s", dbConfig.SQLitePath)
	}

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

func loadSnapshot(repo *database.ArtworkRepository) (*catalog.Snapshot, error) {
	ctx := context.Background()

	artworks, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	dim, err := repo.GetDim(ctx)
	if err != nil {
		return nil, err
	}

	return catalog.BuildSnapshot(artworks, dim), nil
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("Warning: invalid %s=%q, using default", key, v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using default", key, v)
	}
	return fallback
}
