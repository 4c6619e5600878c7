package repositories

import (
	"fmt"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// FeatureRepository persists audio feature records, one-to-one with tracks.
type FeatureRepository struct {
	q querier
}

// NewFeatureRepository creates a FeatureRepository bound to a database handle or transaction.
func NewFeatureRepository(q querier) *FeatureRepository {
	return &FeatureRepository{q: q}
}

// Upsert inserts or updates the feature record for a track.
func (r *FeatureRepository) Upsert(f models.AudioFeatures) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreIntegrity, err)
	}

	query := `
		INSERT INTO audio_features (track_id, tempo, musical_key, mode, energy, danceability,
			valence, acousticness, instrumentalness, liveness, loudness, speechiness, time_signature, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			tempo = excluded.tempo,
			musical_key = excluded.musical_key,
			mode = excluded.mode,
			energy = excluded.energy,
			danceability = excluded.danceability,
			valence = excluded.valence,
			acousticness = excluded.acousticness,
			instrumentalness = excluded.instrumentalness,
			liveness = excluded.liveness,
			loudness = excluded.loudness,
			speechiness = excluded.speechiness,
			time_signature = excluded.time_signature,
			updated_at = excluded.updated_at
	`

	_, err := r.q.Exec(query,
		f.TrackID, f.Tempo, f.Key, f.Mode, f.Energy, f.Danceability,
		f.Valence, f.Acousticness, f.Instrumentalness, f.Liveness,
		f.Loudness, f.Speechiness, f.TimeSignature, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert audio features: %w", err)
	}

	return nil
}

// Get retrieves the feature record for a track.
func (r *FeatureRepository) Get(trackID string) (*models.AudioFeatures, error) {
	row := r.q.QueryRow(`
		SELECT track_id, tempo, musical_key, mode, energy, danceability, valence,
			acousticness, instrumentalness, liveness, loudness, speechiness, time_signature
		FROM audio_features WHERE track_id = ?`, trackID)

	var f models.AudioFeatures
	err := row.Scan(&f.TrackID, &f.Tempo, &f.Key, &f.Mode, &f.Energy, &f.Danceability,
		&f.Valence, &f.Acousticness, &f.Instrumentalness, &f.Liveness,
		&f.Loudness, &f.Speechiness, &f.TimeSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: audio features for %s", shared.ErrNotFound, trackID)
	}

	return &f, nil
}

// MissingTrackIDs returns IDs of tracks that have no feature record yet,
// ordered for deterministic batching.
func (r *FeatureRepository) MissingTrackIDs() ([]string, error) {
	rows, err := r.q.Query(`
		SELECT id FROM tracks
		WHERE id NOT IN (SELECT track_id FROM audio_features)
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks missing features: %w", err)
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
