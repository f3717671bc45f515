package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/artlens/artlens/internal/database"
	"github.com/artlens/artlens/internal/models"
)

func main() {
	var (
		file     = flag.String("file", "", "Catalog JSON file to import")
		dbType   = flag.String("db", "sqlite", "Database type (postgres or sqlite)")
		dbPath   = flag.String("path", "./artlens.db", "SQLite database path")
		host     = flag.String("host", "localhost", "Database host")
		port     = flag.Int("port", 5432, "Database port")
		user     = flag.String("user", "artlens", "Database user")
		password = flag.String("password", "artlens_dev", "Database password")
		dbName   = flag.String("name", "artlens", "Database name")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("Please provide a catalog file with -file flag")
	}

	config := database.Config{
		Type:       *dbType,
		Host:       *host,
		Port:       *port,
		User:       *user,
		Password:   *password,
		Name:       *dbName,
		SQLitePath: *dbPath,
	}

	// Override with environment variables if set
	if env := os.Getenv("DB_TYPE"); env != "" {
		config.Type = env
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		config.SQLitePath = env
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		if p, err := strconv.Atoi(env); err == nil {
			config.Port = p
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Name = env
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("Failed to read catalog file:", err)
	}

	var artworks []models.Artwork
	if err := json.Unmarshal(raw, &artworks); err != nil {
		log.Fatal("Failed to parse catalog file:", err)
	}

	db, err := database.NewDB(config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	repo := database.NewArtworkRepository(db)
	ctx := context.Background()

	imported := 0
	descriptors := 0
	for i := range artworks {
		art := &artworks[i]
		if err := repo.Upsert(ctx, art); err != nil {
			log.Printf("Skipping %q: %v", art.Title, err)
			continue
		}
		imported++
		descriptors += len(art.Descriptors)
		fmt.Printf("Imported %s (%d descriptors)\n", art.ID, len(art.Descriptors))
	}

	dim, err := repo.GetDim(ctx)
	if err != nil {
		log.Fatal("Failed to read catalog dimension:", err)
	}

	fmt.Printf("Done: %d/%d artworks, %d descriptors, dim=%d\n",
		imported, len(artworks), descriptors, dim)
}
