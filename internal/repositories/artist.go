package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// ArtistRepository persists canonical artists.
//
// Artists embedded in track payloads carry only id and name; genres and
// popularity arrive later from the artist-detail backfill. Upserts therefore
// never replace a known genre list or popularity with the empty sentinel.
type ArtistRepository struct {
	q querier
}

// NewArtistRepository creates an ArtistRepository bound to a database handle or transaction.
func NewArtistRepository(q querier) *ArtistRepository {
	return &ArtistRepository{q: q}
}

// Upsert inserts or updates an artist by its Spotify ID.
func (r *ArtistRepository) Upsert(artist models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIntegrity, err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO artists (id, name, popularity, genres, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			popularity = CASE WHEN excluded.popularity > 0 THEN excluded.popularity ELSE artists.popularity END,
			genres = CASE WHEN excluded.genres != '' THEN excluded.genres ELSE artists.genres END,
			image_url = CASE WHEN excluded.image_url != '' THEN excluded.image_url ELSE artists.image_url END,
			updated_at = excluded.updated_at
	`

	_, err := r.q.Exec(query,
		artist.ID,
		artist.Name,
		artist.Popularity,
		strings.Join(artist.Genres, ","),
		artist.ImageURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artist: %w", err)
	}

	return nil
}

// Get retrieves an artist by ID.
func (r *ArtistRepository) Get(id string) (*models.Artist, error) {
	row := r.q.QueryRow("SELECT id, name, popularity, genres, image_url FROM artists WHERE id = ?", id)

	artist, err := scanArtist(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	return artist, nil
}

// IDs returns every known artist identifier.
func (r *ArtistRepository) IDs() ([]string, error) {
	rows, err := r.q.Query("SELECT id FROM artists ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query artist ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artist id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// NamesByTrack returns the artist names for each of the given tracks.
func (r *ArtistRepository) NamesByTrack(trackIDs []string) (map[string][]string, error) {
	if len(trackIDs) == 0 {
		return map[string][]string{}, nil
	}

	query := `
		SELECT ta.track_id, a.name
		FROM track_artists ta
		JOIN artists a ON a.id = ta.artist_id
		WHERE ta.track_id IN (` + placeholders(len(trackIDs)) + `)
		ORDER BY ta.track_id, a.name
	`

	args := make([]any, len(trackIDs))
	for i, id := range trackIDs {
		args[i] = id
	}

	rows, err := r.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artist names: %w", err)
	}
	defer rows.Close()

	names := make(map[string][]string)
	for rows.Next() {
		var trackID, name string
		if err := rows.Scan(&trackID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan artist name: %w", err)
		}
		names[trackID] = append(names[trackID], name)
	}

	return names, rows.Err()
}

func scanArtist(s scanner) (*models.Artist, error) {
	var (
		artist   models.Artist
		genres   string
		imageURL sql.NullString
	)

	if err := s.Scan(&artist.ID, &artist.Name, &artist.Popularity, &genres, &imageURL); err != nil {
		return nil, err
	}

	if genres != "" {
		artist.Genres = strings.Split(genres, ",")
	}
	artist.ImageURL = imageURL.String

	return &artist, nil
}
