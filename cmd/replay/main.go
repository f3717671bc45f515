// Command replay feeds a recorded frame sequence through the recognition
// pipeline and prints the stabilizer's output per frame. Useful for tuning
// thresholds against captured sessions without a device.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/artlens/artlens/internal/catalog"
	"github.com/artlens/artlens/internal/database"
	"github.com/artlens/artlens/internal/recognition"
)

type recordedFrame struct {
	TimestampMs int64                   `json:"timestamp_ms"`
	Detections  []recognition.Detection `json:"detections"`
	Location    *recognition.Location   `json:"location,omitempty"`
}

func main() {
	var (
		file      = flag.String("file", "", "Recorded frames JSON file")
		dbPath    = flag.String("path", "./artlens.db", "SQLite database path")
		threshold = flag.Float64("threshold", 0, "Cosine threshold override")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("Please provide a frames file with -file flag")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("Failed to read frames file:", err)
	}

	var frames []recordedFrame
	if err := json.Unmarshal(raw, &frames); err != nil {
		log.Fatal("Failed to parse frames file:", err)
	}

	db, err := database.NewDB(database.Config{Type: "sqlite", SQLitePath: *dbPath})
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	repo := database.NewArtworkRepository(db)
	ctx := context.Background()

	artworks, err := repo.List(ctx)
	if err != nil {
		log.Fatal("Failed to load catalog:", err)
	}
	dim, err := repo.GetDim(ctx)
	if err != nil {
		log.Fatal("Failed to read catalog dimension:", err)
	}
	snap := catalog.BuildSnapshot(artworks, dim)
	fmt.Printf("Catalog: %d entries, dim=%d\n", len(snap.Entries), snap.Dim)

	cfg := recognition.Config{CosineThreshold: *threshold}
	engine := recognition.NewEngine(snap, recognition.LinearMatcher{}, cfg)
	stabilizer := recognition.NewStabilizer(cfg)

	lastState := recognition.StateIdle
	for i, f := range frames {
		result := engine.ProcessFrame(f.Detections, f.Location)
		out := stabilizer.Tick(time.UnixMilli(f.TimestampMs), result)

		if out.State != lastState {
			fmt.Printf("frame %4d t=%6dms  %s -> %s\n", i, f.TimestampMs, lastState, out.State)
			lastState = out.State
		}
		if out.NewlyRecognized != nil {
			fmt.Printf("frame %4d t=%6dms  recognized %q\n",
				i, f.TimestampMs, out.NewlyRecognized.Entry.Key())
		}
	}
}
