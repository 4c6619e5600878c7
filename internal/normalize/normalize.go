// package normalize maps remote API payload shapes into canonical [models] entities.
//
// Every function here is pure: no I/O, no store access. Missing optional
// fields become explicit empty or zero sentinels rather than failing the
// record. A malformed record inside an otherwise-good page is skipped with a
// recorded warning; a page where every record fails normalization is a
// [PageError].
package normalize

import (
	"fmt"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

// Warning records one skipped record within a page.
type Warning struct {
	Index  int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("record %d: %s", w.Index, w.Reason)
}

// PageError is returned when no record in a page survived normalization.
type PageError struct {
	Warnings []Warning
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%v: all %d records malformed", shared.ErrPageNormalization, len(e.Warnings))
}

// Is reports a match against [shared.ErrPageNormalization].
func (e *PageError) Is(target error) bool {
	return target == shared.ErrPageNormalization
}

// Artist normalizes a remote artist payload. An artist embedded in a track
// payload has no genres or popularity; those stay at their sentinels until
// the artist-detail backfill overwrites them.
func Artist(raw services.SpotifyArtist) (models.Artist, error) {
	if raw.ID == "" || raw.Name == "" {
		return models.Artist{}, fmt.Errorf("artist missing id or name")
	}

	return models.Artist{
		ID:         raw.ID,
		Name:       raw.Name,
		Popularity: raw.Popularity,
		Genres:     models.NormalizeGenres(raw.Genres),
		ImageURL:   firstImageURL(raw.Images),
	}, nil
}

// Album normalizes a remote album payload. An absent release date becomes the
// unknown [models.ReleaseDate] sentinel.
func Album(raw services.SpotifyAlbum) (models.Album, error) {
	if raw.ID == "" || raw.Name == "" {
		return models.Album{}, fmt.Errorf("album missing id or name")
	}

	return models.Album{
		ID:          raw.ID,
		Name:        raw.Name,
		AlbumType:   raw.AlbumType,
		ReleaseDate: models.NewReleaseDate(raw.ReleaseDate),
		TotalTracks: raw.TotalTracks,
		ImageURL:    firstImageURL(raw.Images),
	}, nil
}

// Track normalizes a remote track payload into a canonical track plus its
// referenced album and artists. The album's release date is denormalized onto
// the track for sort queries.
func Track(raw services.SpotifyTrack) (models.Track, *models.Album, []models.Artist, error) {
	if raw.ID == "" || raw.Name == "" {
		return models.Track{}, nil, nil, fmt.Errorf("track missing id or name")
	}

	track := models.Track{
		ID:          raw.ID,
		Name:        raw.Name,
		DurationMS:  raw.DurationMS,
		Explicit:    raw.Explicit,
		Popularity:  clampPopularity(raw.Popularity),
		PreviewURL:  raw.PreviewURL,
		TrackNumber: raw.TrackNumber,
	}

	var album *models.Album
	if a, err := Album(raw.Album); err == nil {
		album = &a
		track.AlbumID = a.ID
		track.ReleaseDate = a.ReleaseDate
	}

	artists := make([]models.Artist, 0, len(raw.Artists))
	for _, rawArtist := range raw.Artists {
		artist, err := Artist(rawArtist)
		if err != nil {
			continue
		}
		artists = append(artists, artist)
		track.ArtistIDs = append(track.ArtistIDs, artist.ID)
	}

	return track, album, artists, nil
}

// Features normalizes a remote audio feature payload.
func Features(raw services.SpotifyAudioFeatures) (models.AudioFeatures, error) {
	if raw.ID == "" {
		return models.AudioFeatures{}, fmt.Errorf("audio features missing track id")
	}

	return models.AudioFeatures{
		TrackID:          raw.ID,
		Tempo:            raw.Tempo,
		Key:              raw.Key,
		Mode:             raw.Mode,
		Energy:           raw.Energy,
		Danceability:     raw.Danceability,
		Valence:          raw.Valence,
		Acousticness:     raw.Acousticness,
		Instrumentalness: raw.Instrumentalness,
		Liveness:         raw.Liveness,
		Loudness:         raw.Loudness,
		Speechiness:      raw.Speechiness,
		TimeSignature:    raw.TimeSignature,
	}, nil
}

// Playlist normalizes a remote playlist summary. Membership entries are
// attached separately as pages of playlist tracks arrive.
func Playlist(raw services.SpotifySimplePlaylist) (models.Playlist, error) {
	if raw.ID == "" || raw.Name == "" {
		return models.Playlist{}, fmt.Errorf("playlist missing id or name")
	}

	return models.Playlist{
		ID:            raw.ID,
		Name:          raw.Name,
		Description:   raw.Description,
		Public:        raw.Public,
		Collaborative: raw.Collaborative,
		OwnerID:       raw.Owner.ID,
		SnapshotID:    raw.SnapshotID,
		TotalTracks:   raw.Tracks.Total,
		ImageURL:      firstImageURL(raw.Images),
	}, nil
}

// TrackBundle is the normalized content of one page of track-bearing items.
// Albums and artists are the shared records referenced by the tracks.
type TrackBundle struct {
	Tracks   []models.Track
	Albums   []models.Album
	Artists  []models.Artist
	Warnings []Warning
}

// LikedTrackPage normalizes one page of saved-track items. Each surviving
// track is marked liked with its library-add timestamp.
func LikedTrackPage(items []services.SpotifySavedTrack) (*TrackBundle, error) {
	bundle := &TrackBundle{}

	for i, item := range items {
		track, album, artists, err := Track(item.Track)
		if err != nil {
			bundle.Warnings = append(bundle.Warnings, Warning{Index: i, Reason: err.Error()})
			continue
		}

		track.IsLiked = true
		track.LikedAt = parseTimestamp(item.AddedAt)

		bundle.Tracks = append(bundle.Tracks, track)
		if album != nil {
			bundle.Albums = append(bundle.Albums, *album)
		}
		bundle.Artists = append(bundle.Artists, artists...)
	}

	if len(items) > 0 && len(bundle.Tracks) == 0 {
		return nil, &PageError{Warnings: bundle.Warnings}
	}

	return bundle, nil
}

// PlaylistTrackPage normalizes one page of playlist items. startPos is the
// playlist position of the page's first item; entries keep remote order.
func PlaylistTrackPage(items []services.SpotifyPlaylistTrack, startPos int) (*TrackBundle, []models.PlaylistEntry, error) {
	bundle := &TrackBundle{}
	var entries []models.PlaylistEntry

	for i, item := range items {
		if item.Track == nil {
			bundle.Warnings = append(bundle.Warnings, Warning{Index: i, Reason: "null track"})
			continue
		}

		track, album, artists, err := Track(*item.Track)
		if err != nil {
			bundle.Warnings = append(bundle.Warnings, Warning{Index: i, Reason: err.Error()})
			continue
		}

		bundle.Tracks = append(bundle.Tracks, track)
		if album != nil {
			bundle.Albums = append(bundle.Albums, *album)
		}
		bundle.Artists = append(bundle.Artists, artists...)

		entries = append(entries, models.PlaylistEntry{
			TrackID:  track.ID,
			Position: startPos + i,
			AddedAt:  parseTimestamp(item.AddedAt),
		})
	}

	if len(items) > 0 && len(bundle.Tracks) == 0 {
		return nil, nil, &PageError{Warnings: bundle.Warnings}
	}

	return bundle, entries, nil
}

// parseTimestamp parses a remote RFC3339 timestamp, zero on absence or garbage.
func parseTimestamp(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func clampPopularity(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func firstImageURL(images []services.SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
