package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// PlaylistRepository persists playlists and their ordered membership.
//
// Membership is replaced wholesale per playlist per sync pass: the remote API
// returns full membership rather than deltas, so incremental diffing buys
// nothing. ClearEntries runs once per playlist before the first membership
// page, InsertEntries once per page.
type PlaylistRepository struct {
	q querier
}

// NewPlaylistRepository creates a PlaylistRepository bound to a database handle or transaction.
func NewPlaylistRepository(q querier) *PlaylistRepository {
	return &PlaylistRepository{q: q}
}

// Upsert inserts or updates playlist metadata by its Spotify ID. Membership
// entries are written separately.
func (r *PlaylistRepository) Upsert(playlist models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIntegrity, err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO playlists (id, name, description, public, collaborative, owner_id,
			snapshot_id, total_tracks, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			public = excluded.public,
			collaborative = excluded.collaborative,
			owner_id = excluded.owner_id,
			snapshot_id = excluded.snapshot_id,
			total_tracks = excluded.total_tracks,
			image_url = CASE WHEN excluded.image_url != '' THEN excluded.image_url ELSE playlists.image_url END,
			updated_at = excluded.updated_at
	`

	_, err := r.q.Exec(query,
		playlist.ID,
		playlist.Name,
		playlist.Description,
		boolToInt(playlist.Public),
		boolToInt(playlist.Collaborative),
		playlist.OwnerID,
		playlist.SnapshotID,
		playlist.TotalTracks,
		playlist.ImageURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}

	return nil
}

// SnapshotID returns the stored remote revision marker for a playlist, empty
// when the playlist is unknown. An unchanged snapshot means membership does
// not need re-fetching.
func (r *PlaylistRepository) SnapshotID(id string) (string, error) {
	var snapshot string
	err := r.q.QueryRow("SELECT snapshot_id FROM playlists WHERE id = ?", id).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query snapshot: %w", err)
	}
	return snapshot, nil
}

// SetSnapshot records the remote revision marker for a playlist. The
// orchestrator writes it in the same transaction as the final membership
// page, so an interrupted membership sync never claims to be current.
func (r *PlaylistRepository) SetSnapshot(id, snapshot string) error {
	if _, err := r.q.Exec("UPDATE playlists SET snapshot_id = ? WHERE id = ?", snapshot, id); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

// ClearEntries removes all membership rows for a playlist.
func (r *PlaylistRepository) ClearEntries(playlistID string) error {
	if _, err := r.q.Exec("DELETE FROM playlist_tracks WHERE playlist_id = ?", playlistID); err != nil {
		return fmt.Errorf("failed to clear playlist entries: %w", err)
	}
	return nil
}

// InsertEntries appends membership rows, keeping remote playlist positions.
func (r *PlaylistRepository) InsertEntries(playlistID string, entries []models.PlaylistEntry) error {
	for _, entry := range entries {
		var addedAt any
		if !entry.AddedAt.IsZero() {
			addedAt = entry.AddedAt.UTC()
		}

		_, err := r.q.Exec(
			"INSERT OR REPLACE INTO playlist_tracks (playlist_id, track_id, position, added_at) VALUES (?, ?, ?, ?)",
			playlistID, entry.TrackID, entry.Position, addedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert playlist entry: %w", err)
		}
	}
	return nil
}

// Get retrieves a playlist with its ordered membership.
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	row := r.q.QueryRow(
		"SELECT id, name, description, public, collaborative, owner_id, snapshot_id, total_tracks, image_url FROM playlists WHERE id = ?",
		id,
	)

	playlist, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if playlist.Entries, err = r.entriesFor(id); err != nil {
		return nil, err
	}

	return playlist, nil
}

// MatchName returns playlists whose name contains pattern, case-insensitively,
// ordered by name. Membership entries are loaded for each match.
func (r *PlaylistRepository) MatchName(pattern string) ([]models.Playlist, error) {
	rows, err := r.q.Query(
		`SELECT id, name, description, public, collaborative, owner_id, snapshot_id, total_tracks, image_url
		 FROM playlists
		 WHERE instr(lower(name), lower(?)) > 0
		 ORDER BY name`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for i := range playlists {
		if playlists[i].Entries, err = r.entriesFor(playlists[i].ID); err != nil {
			return nil, err
		}
	}

	return playlists, nil
}

// entriesFor loads the ordered membership for a playlist.
func (r *PlaylistRepository) entriesFor(playlistID string) ([]models.PlaylistEntry, error) {
	rows, err := r.q.Query(
		"SELECT track_id, position, added_at FROM playlist_tracks WHERE playlist_id = ? ORDER BY position",
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	var entries []models.PlaylistEntry
	for rows.Next() {
		var (
			entry   models.PlaylistEntry
			addedAt sql.NullTime
		)
		if err := rows.Scan(&entry.TrackID, &entry.Position, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist entry: %w", err)
		}
		if addedAt.Valid {
			entry.AddedAt = addedAt.Time.UTC()
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var (
		playlist      models.Playlist
		description   sql.NullString
		public        int
		collaborative int
		ownerID       sql.NullString
		imageURL      sql.NullString
	)

	err := s.Scan(&playlist.ID, &playlist.Name, &description, &public, &collaborative,
		&ownerID, &playlist.SnapshotID, &playlist.TotalTracks, &imageURL)
	if err != nil {
		return nil, err
	}

	playlist.Description = description.String
	playlist.Public = public == 1
	playlist.Collaborative = collaborative == 1
	playlist.OwnerID = ownerID.String
	playlist.ImageURL = imageURL.String

	return &playlist, nil
}
