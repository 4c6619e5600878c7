package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// AlbumRepository persists canonical albums.
type AlbumRepository struct {
	q querier
}

// NewAlbumRepository creates an AlbumRepository bound to a database handle or transaction.
func NewAlbumRepository(q querier) *AlbumRepository {
	return &AlbumRepository{q: q}
}

// Upsert inserts or updates an album by its Spotify ID.
func (r *AlbumRepository) Upsert(album models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIntegrity, err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO albums (id, name, album_type, release_date, total_tracks, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			album_type = excluded.album_type,
			release_date = excluded.release_date,
			total_tracks = excluded.total_tracks,
			image_url = CASE WHEN excluded.image_url != '' THEN excluded.image_url ELSE albums.image_url END,
			updated_at = excluded.updated_at
	`

	_, err := r.q.Exec(query,
		album.ID,
		album.Name,
		album.AlbumType,
		album.ReleaseDate.String(),
		album.TotalTracks,
		album.ImageURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert album: %w", err)
	}

	return nil
}

// Get retrieves an album by ID.
func (r *AlbumRepository) Get(id string) (*models.Album, error) {
	row := r.q.QueryRow("SELECT id, name, album_type, release_date, total_tracks, image_url FROM albums WHERE id = ?", id)

	var (
		album       models.Album
		albumType   sql.NullString
		releaseDate string
		imageURL    sql.NullString
	)

	err := row.Scan(&album.ID, &album.Name, &albumType, &releaseDate, &album.TotalTracks, &imageURL)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	album.AlbumType = albumType.String
	album.ReleaseDate = models.NewReleaseDate(releaseDate)
	album.ImageURL = imageURL.String

	return &album, nil
}
