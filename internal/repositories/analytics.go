package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/cratedig/internal/models"
)

// Analytical queries backing the reconciliation engine. These read the mirror
// only, never the remote service.

// ArtistPlayCount pairs an artist with its appearance count in a track scope.
type ArtistPlayCount struct {
	Artist models.Artist
	Count  int
}

// UnsortedLikedTracks returns liked tracks that appear in no playlist whose
// name contains pattern (case-insensitive). Ordering is left to the caller's
// sort policy.
func (s *Store) UnsortedLikedTracks(pattern string) ([]models.Track, error) {
	query := `
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE is_liked = 1
		AND id NOT IN (
			SELECT pt.track_id
			FROM playlist_tracks pt
			JOIN playlists p ON p.id = pt.playlist_id
			WHERE instr(lower(p.name), lower(?)) > 0
		)
	`

	rows, err := s.db.Query(query, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsorted tracks: %w", err)
	}
	defer rows.Close()

	return collectTracks(rows)
}

// TopArtists returns artists ranked by track appearances within a scope.
//
// With a non-empty pattern the scope is tracks in playlists whose name
// contains the pattern; with likedOnly the scope is restricted to liked
// tracks. Ties break alphabetically by artist name for determinism.
func (s *Store) TopArtists(pattern string, likedOnly bool, limit int) ([]ArtistPlayCount, error) {
	query := `
		SELECT a.id, a.name, a.popularity, a.genres, a.image_url, COUNT(DISTINCT t.id) AS track_count
		FROM artists a
		JOIN track_artists ta ON ta.artist_id = a.id
		JOIN tracks t ON t.id = ta.track_id
	`
	args := []any{}

	if pattern != "" {
		query += `
		JOIN playlist_tracks pt ON pt.track_id = t.id
		JOIN playlists p ON p.id = pt.playlist_id AND instr(lower(p.name), lower(?)) > 0
		`
		args = append(args, pattern)
	}

	query += " WHERE 1 = 1"
	if likedOnly {
		query += " AND t.is_liked = 1"
	}

	query += `
		GROUP BY a.id
		ORDER BY track_count DESC, a.name ASC
	`

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top artists: %w", err)
	}
	defer rows.Close()

	var results []ArtistPlayCount
	for rows.Next() {
		var (
			entry    ArtistPlayCount
			genres   string
			imageURL sql.NullString
		)
		err := rows.Scan(&entry.Artist.ID, &entry.Artist.Name, &entry.Artist.Popularity,
			&genres, &imageURL, &entry.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist count: %w", err)
		}
		if genres != "" {
			entry.Artist.Genres = strings.Split(genres, ",")
		}
		entry.Artist.ImageURL = imageURL.String
		results = append(results, entry)
	}

	return results, rows.Err()
}
