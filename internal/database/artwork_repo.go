package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artlens/artlens/internal/models"
	"github.com/artlens/artlens/internal/vector"
)

const dimSettingKey = "db_dim"

// ErrDimMismatch marks descriptor batches whose embedding dimension
// disagrees internally or with the recorded catalog dimension.
var ErrDimMismatch = errors.New("embedding dim mismatch")

// ArtworkRepository persists artworks and their visual descriptors.
// Embeddings are stored as JSON float arrays so the same SQL works on both
// drivers; they are L2-normalized on the way in.
type ArtworkRepository struct {
	db *DB
}

func NewArtworkRepository(db *DB) *ArtworkRepository {
	return &ArtworkRepository{db: db}
}

// Upsert inserts or updates an artwork and its descriptors. An empty id is
// derived from the title as a slug and made unique with numeric suffixes.
// Descriptor dims must agree with each other and with the recorded catalog
// dimension; the first batch ever stored fixes that dimension.
func (r *ArtworkRepository) Upsert(ctx context.Context, art *models.Artwork) error {
	if art.ID == "" {
		id, err := r.ensureUniqueID(ctx, models.Slugify(art.Title))
		if err != nil {
			return err
		}
		art.ID = id
	}

	observedDim := 0
	for i := range art.Descriptors {
		d := &art.Descriptors[i]
		if len(d.Embedding) == 0 {
			continue
		}
		vector.Normalize(d.Embedding)
		if observedDim == 0 {
			observedDim = len(d.Embedding)
		} else if len(d.Embedding) != observedDim {
			return fmt.Errorf("descriptor %d: %w", i, ErrDimMismatch)
		}
		if d.DescriptorID == "" {
			d.DescriptorID = fmt.Sprintf("main#%d", i)
		}
	}

	if observedDim > 0 {
		dim, err := r.GetDim(ctx)
		if err != nil {
			return err
		}
		if dim == 0 {
			if err := r.setDim(ctx, observedDim); err != nil {
				return err
			}
		} else if dim != observedDim {
			return fmt.Errorf("got %d, expected %d: %w", observedDim, dim, ErrDimMismatch)
		}
	}

	descriptions, err := json.Marshal(art.Descriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptions: %w", err)
	}

	var geofence sql.NullString
	if art.Geofence != nil {
		raw, err := json.Marshal(art.Geofence)
		if err != nil {
			return fmt.Errorf("failed to marshal geofence: %w", err)
		}
		geofence = sql.NullString{String: string(raw), Valid: true}
	}

	art.UpdatedAt = time.Now()

	var query string
	if r.db.dbType == "postgres" {
		query = `
			INSERT INTO artworks (id, title, artist, year, museum, location, descriptions, geofence, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				artist = EXCLUDED.artist,
				year = EXCLUDED.year,
				museum = EXCLUDED.museum,
				location = EXCLUDED.location,
				descriptions = EXCLUDED.descriptions,
				geofence = EXCLUDED.geofence,
				updated_at = EXCLUDED.updated_at`
	} else {
		query = `
			INSERT INTO artworks (id, title, artist, year, museum, location, descriptions, geofence, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				year = excluded.year,
				museum = excluded.museum,
				location = excluded.location,
				descriptions = excluded.descriptions,
				geofence = excluded.geofence,
				updated_at = excluded.updated_at`
	}

	if _, err := r.db.conn.ExecContext(ctx, query,
		art.ID, art.Title, art.Artist, art.Year, art.Museum, art.Location,
		string(descriptions), geofence, art.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert artwork: %w", err)
	}

	for i := range art.Descriptors {
		d := &art.Descriptors[i]
		if len(d.Embedding) == 0 {
			continue
		}
		d.ArtworkID = art.ID
		if err := r.upsertDescriptor(ctx, d); err != nil {
			return err
		}
	}

	return nil
}

func (r *ArtworkRepository) upsertDescriptor(ctx context.Context, d *models.Descriptor) error {
	embedding, err := json.Marshal(d.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	var query string
	if r.db.dbType == "postgres" {
		query = `
			INSERT INTO descriptors (artwork_id, descriptor_id, image_path, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (artwork_id, descriptor_id) DO UPDATE SET
				image_path = EXCLUDED.image_path,
				embedding = EXCLUDED.embedding`
	} else {
		query = `
			INSERT INTO descriptors (artwork_id, descriptor_id, image_path, embedding)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (artwork_id, descriptor_id) DO UPDATE SET
				image_path = excluded.image_path,
				embedding = excluded.embedding`
	}

	if _, err := r.db.conn.ExecContext(ctx, query,
		d.ArtworkID, d.DescriptorID, d.ImagePath, string(embedding),
	); err != nil {
		return fmt.Errorf("failed to upsert descriptor %s: %w", d.DescriptorID, err)
	}
	return nil
}

// GetByID returns one artwork with its descriptors, or nil when absent.
func (r *ArtworkRepository) GetByID(ctx context.Context, id string) (*models.Artwork, error) {
	query := `
		SELECT id, title, artist, year, museum, location, descriptions, geofence, updated_at
		FROM artworks WHERE id = $1`
	if r.db.dbType != "postgres" {
		query = `
		SELECT id, title, artist, year, museum, location, descriptions, geofence, updated_at
		FROM artworks WHERE id = ?`
	}

	art, err := scanArtwork(r.db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}

	descriptors, err := r.descriptorsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	art.Descriptors = descriptors

	return art, nil
}

// List returns every artwork with descriptors attached, ordered by id.
func (r *ArtworkRepository) List(ctx context.Context) ([]models.Artwork, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, title, artist, year, museum, location, descriptions, geofence, updated_at
		FROM artworks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artworks: %w", err)
	}
	defer rows.Close()

	var artworks []models.Artwork
	index := make(map[string]int)
	for rows.Next() {
		art, err := scanArtwork(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artwork: %w", err)
		}
		index[art.ID] = len(artworks)
		artworks = append(artworks, *art)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	descRows, err := r.db.conn.QueryContext(ctx, `
		SELECT artwork_id, descriptor_id, image_path, embedding
		FROM descriptors ORDER BY artwork_id, descriptor_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	defer descRows.Close()

	for descRows.Next() {
		d, err := scanDescriptor(descRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[d.ArtworkID]; ok {
			artworks[i].Descriptors = append(artworks[i].Descriptors, d)
		}
	}
	return artworks, descRows.Err()
}

// Delete removes an artwork; descriptors cascade. Reports whether a row
// existed.
func (r *ArtworkRepository) Delete(ctx context.Context, id string) (bool, error) {
	query := "DELETE FROM artworks WHERE id = $1"
	if r.db.dbType != "postgres" {
		query = "DELETE FROM artworks WHERE id = ?"
	}

	res, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete artwork: %w", err)
	}
	count, _ := res.RowsAffected()
	return count > 0, nil
}

func (r *ArtworkRepository) DeleteDescriptor(ctx context.Context, artworkID, descriptorID string) (bool, error) {
	query := "DELETE FROM descriptors WHERE artwork_id = $1 AND descriptor_id = $2"
	if r.db.dbType != "postgres" {
		query = "DELETE FROM descriptors WHERE artwork_id = ? AND descriptor_id = ?"
	}

	res, err := r.db.conn.ExecContext(ctx, query, artworkID, descriptorID)
	if err != nil {
		return false, fmt.Errorf("failed to delete descriptor: %w", err)
	}
	count, _ := res.RowsAffected()
	return count > 0, nil
}

func (r *ArtworkRepository) SetDescriptorImage(ctx context.Context, artworkID, descriptorID, imagePath string) error {
	query := "UPDATE descriptors SET image_path = $1 WHERE artwork_id = $2 AND descriptor_id = $3"
	if r.db.dbType != "postgres" {
		query = "UPDATE descriptors SET image_path = ? WHERE artwork_id = ? AND descriptor_id = ?"
	}

	if _, err := r.db.conn.ExecContext(ctx, query, imagePath, artworkID, descriptorID); err != nil {
		return fmt.Errorf("failed to set descriptor image: %w", err)
	}
	return nil
}

// GetDim returns the catalog's recorded embedding dimension, 0 if unset.
func (r *ArtworkRepository) GetDim(ctx context.Context) (int, error) {
	query := "SELECT value FROM settings WHERE key = $1"
	if r.db.dbType != "postgres" {
		query = "SELECT value FROM settings WHERE key = ?"
	}

	var raw string
	err := r.db.conn.QueryRowContext(ctx, query, dimSettingKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read db_dim: %w", err)
	}

	var value struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return 0, nil
	}
	return value.Value, nil
}

func (r *ArtworkRepository) setDim(ctx context.Context, dim int) error {
	raw, _ := json.Marshal(map[string]int{"value": dim})

	var query string
	if r.db.dbType == "postgres" {
		query = `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING`
	} else {
		query = `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO NOTHING`
	}

	if _, err := r.db.conn.ExecContext(ctx, query, dimSettingKey, string(raw)); err != nil {
		return fmt.Errorf("failed to record db_dim: %w", err)
	}
	return nil
}

func (r *ArtworkRepository) ensureUniqueID(ctx context.Context, base string) (string, error) {
	candidate := base
	for suffix := 2; ; suffix++ {
		taken, err := r.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func (r *ArtworkRepository) exists(ctx context.Context, id string) (bool, error) {
	query := "SELECT 1 FROM artworks WHERE id = $1 LIMIT 1"
	if r.db.dbType != "postgres" {
		query = "SELECT 1 FROM artworks WHERE id = ? LIMIT 1"
	}

	var one int
	err := r.db.conn.QueryRowContext(ctx, query, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check artwork id: %w", err)
	}
	return true, nil
}

func (r *ArtworkRepository) descriptorsFor(ctx context.Context, artworkID string) ([]models.Descriptor, error) {
	query := `
		SELECT artwork_id, descriptor_id, image_path, embedding
		FROM descriptors WHERE artwork_id = $1 ORDER BY descriptor_id`
	if r.db.dbType != "postgres" {
		query = `
		SELECT artwork_id, descriptor_id, image_path, embedding
		FROM descriptors WHERE artwork_id = ? ORDER BY descriptor_id`
	}

	rows, err := r.db.conn.QueryContext(ctx, query, artworkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query descriptors: %w", err)
	}
	defer rows.Close()

	var descriptors []models.Descriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArtwork(row rowScanner) (*models.Artwork, error) {
	var art models.Artwork
	var title, artist, year, museum, location, descriptions, geofence sql.NullString
	var updatedAt sql.NullTime

	if err := row.Scan(&art.ID, &title, &artist, &year, &museum, &location,
		&descriptions, &geofence, &updatedAt); err != nil {
		return nil, err
	}

	art.Title = title.String
	art.Artist = artist.String
	art.Year = year.String
	art.Museum = museum.String
	art.Location = location.String
	art.UpdatedAt = updatedAt.Time

	if descriptions.Valid && descriptions.String != "" {
		if err := json.Unmarshal([]byte(descriptions.String), &art.Descriptions); err != nil {
			art.Descriptions = nil
		}
	}
	if geofence.Valid && geofence.String != "" {
		var g models.Geofence
		if err := json.Unmarshal([]byte(geofence.String), &g); err == nil {
			art.Geofence = &g
		}
	}

	return &art, nil
}

func scanDescriptor(row rowScanner) (models.Descriptor, error) {
	var d models.Descriptor
	var imagePath sql.NullString
	var embedding string

	if err := row.Scan(&d.ArtworkID, &d.DescriptorID, &imagePath, &embedding); err != nil {
		return d, fmt.Errorf("failed to scan descriptor: %w", err)
	}

	d.ImagePath = imagePath.String
	if err := json.Unmarshal([]byte(embedding), &d.Embedding); err != nil {
		// A corrupt embedding row is excluded from matching, not fatal.
		d.Embedding = nil
	}
	return d, nil
}
