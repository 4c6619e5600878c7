package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// TrackRepository persists canonical tracks and their artist links.
//
// Upserts are idempotent and last-write-wins per field, with one deliberate
// exception: the liked flag is only raised by liked-collection syncs and only
// cleared by an explicit prune, so a playlist sync passing through the same
// track cannot wipe library state it knows nothing about.
type TrackRepository struct {
	q querier
}

// NewTrackRepository creates a TrackRepository bound to a database handle or transaction.
func NewTrackRepository(q querier) *TrackRepository {
	return &TrackRepository{q: q}
}

// Upsert inserts or updates a track by its Spotify ID, then replaces its
// artist links. Re-syncing an existing ID updates fields in place, never
// inserting a duplicate row.
func (r *TrackRepository) Upsert(track models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIntegrity, err)
	}

	now := time.Now().UTC()

	var likedAt any
	if track.IsLiked && !track.LikedAt.IsZero() {
		likedAt = track.LikedAt.UTC()
	}

	query := `
		INSERT INTO tracks (id, name, duration_ms, explicit, popularity, preview_url, track_number,
			is_liked, liked_at, release_date, album_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			duration_ms = excluded.duration_ms,
			explicit = excluded.explicit,
			popularity = excluded.popularity,
			preview_url = excluded.preview_url,
			track_number = excluded.track_number,
			is_liked = CASE WHEN excluded.is_liked = 1 THEN 1 ELSE tracks.is_liked END,
			liked_at = CASE WHEN excluded.is_liked = 1 THEN excluded.liked_at ELSE tracks.liked_at END,
			release_date = excluded.release_date,
			album_id = excluded.album_id,
			updated_at = excluded.updated_at
	`

	var albumID any
	if track.AlbumID != "" {
		albumID = track.AlbumID
	}

	_, err := r.q.Exec(query,
		track.ID,
		track.Name,
		track.DurationMS,
		boolToInt(track.Explicit),
		track.Popularity,
		track.PreviewURL,
		track.TrackNumber,
		boolToInt(track.IsLiked),
		likedAt,
		track.ReleaseDate.String(),
		albumID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}

	if len(track.ArtistIDs) > 0 {
		if _, err := r.q.Exec("DELETE FROM track_artists WHERE track_id = ?", track.ID); err != nil {
			return fmt.Errorf("failed to clear track artists: %w", err)
		}
		for _, artistID := range track.ArtistIDs {
			if _, err := r.q.Exec(
				"INSERT OR IGNORE INTO track_artists (track_id, artist_id) VALUES (?, ?)",
				track.ID, artistID,
			); err != nil {
				return fmt.Errorf("failed to link track artist: %w", err)
			}
		}
	}

	return nil
}

const trackColumns = `id, name, duration_ms, explicit, popularity, preview_url, track_number,
	is_liked, liked_at, release_date, album_id`

// Get retrieves a track by ID with its artist links.
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	row := r.q.QueryRow("SELECT "+trackColumns+" FROM tracks WHERE id = ?", id)

	track, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachArtistIDs(track); err != nil {
		return nil, err
	}

	return track, nil
}

// IDs returns every known track identifier.
func (r *TrackRepository) IDs() ([]string, error) {
	rows, err := r.q.Query("SELECT id FROM tracks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query track ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ClearLikedExcept clears the liked flag on tracks whose IDs are not in keep.
// Used by the explicit prune pass after re-fetching the remote liked set.
func (r *TrackRepository) ClearLikedExcept(keep []string) (int64, error) {
	query := "UPDATE tracks SET is_liked = 0, liked_at = NULL WHERE is_liked = 1"
	args := []any{}

	if len(keep) > 0 {
		query += " AND id NOT IN (" + placeholders(len(keep)) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := r.q.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear liked flags: %w", err)
	}

	return result.RowsAffected()
}

// DeleteOrphans removes tracks that are neither liked nor in any playlist,
// along with their artist links and audio features. Returns the number of
// tracks removed. Only the explicit prune pass calls this.
func (r *TrackRepository) DeleteOrphans() (int64, error) {
	const orphans = `
		SELECT id FROM tracks
		WHERE is_liked = 0
		AND id NOT IN (SELECT track_id FROM playlist_tracks)
	`

	if _, err := r.q.Exec("DELETE FROM track_artists WHERE track_id IN (" + orphans + ")"); err != nil {
		return 0, fmt.Errorf("failed to delete orphan track artists: %w", err)
	}
	if _, err := r.q.Exec("DELETE FROM audio_features WHERE track_id IN (" + orphans + ")"); err != nil {
		return 0, fmt.Errorf("failed to delete orphan audio features: %w", err)
	}

	result, err := r.q.Exec("DELETE FROM tracks WHERE id IN (" + orphans + ")")
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan tracks: %w", err)
	}

	return result.RowsAffected()
}

// attachArtistIDs loads the ordered artist links for a track.
func (r *TrackRepository) attachArtistIDs(track *models.Track) error {
	rows, err := r.q.Query("SELECT artist_id FROM track_artists WHERE track_id = ? ORDER BY artist_id", track.ID)
	if err != nil {
		return fmt.Errorf("failed to query track artists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var artistID string
		if err := rows.Scan(&artistID); err != nil {
			return fmt.Errorf("failed to scan track artist: %w", err)
		}
		track.ArtistIDs = append(track.ArtistIDs, artistID)
	}

	return rows.Err()
}

// scanner abstracts [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(s scanner) (*models.Track, error) {
	var (
		track       models.Track
		explicit    int
		isLiked     int
		likedAt     sql.NullTime
		previewURL  sql.NullString
		releaseDate string
		albumID     sql.NullString
		durationMS  sql.NullInt64
		trackNumber sql.NullInt64
	)

	err := s.Scan(&track.ID, &track.Name, &durationMS, &explicit, &track.Popularity,
		&previewURL, &trackNumber, &isLiked, &likedAt, &releaseDate, &albumID)
	if err != nil {
		return nil, err
	}

	track.DurationMS = int(durationMS.Int64)
	track.Explicit = explicit == 1
	track.PreviewURL = previewURL.String
	track.TrackNumber = int(trackNumber.Int64)
	track.IsLiked = isLiked == 1
	if likedAt.Valid {
		track.LikedAt = likedAt.Time.UTC()
	}
	track.ReleaseDate = models.NewReleaseDate(releaseDate)
	track.AlbumID = albumID.String

	return &track, nil
}

func collectTracks(rows *sql.Rows) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
