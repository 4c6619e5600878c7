package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

func sampleTrack(id, name string) services.SpotifyTrack {
	return services.SpotifyTrack{
		ID:          id,
		Name:        name,
		DurationMS:  180000,
		Popularity:  64,
		TrackNumber: 3,
		Album: services.SpotifyAlbum{
			ID:          "album-1",
			Name:        "Some Album",
			AlbumType:   "album",
			ReleaseDate: "2007-03",
			TotalTracks: 11,
		},
		Artists: []services.SpotifyArtist{
			{ID: "artist-1", Name: "First Artist"},
			{ID: "artist-2", Name: "Second Artist"},
		},
	}
}

func TestTrack(t *testing.T) {
	t.Run("Full Payload", func(t *testing.T) {
		track, album, artists, err := Track(sampleTrack("track-1", "Some Song"))
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}

		if track.ID != "track-1" || track.Name != "Some Song" {
			t.Errorf("unexpected track identity: %s / %s", track.ID, track.Name)
		}
		if track.AlbumID != "album-1" {
			t.Errorf("expected album reference, got %q", track.AlbumID)
		}
		if track.ReleaseDate.String() != "2007-03" {
			t.Errorf("album release date should be denormalized onto the track, got %q", track.ReleaseDate)
		}
		if album == nil || album.ID != "album-1" {
			t.Error("expected album record")
		}
		if len(artists) != 2 || len(track.ArtistIDs) != 2 {
			t.Errorf("expected 2 artists, got %d refs %v", len(artists), track.ArtistIDs)
		}
	})

	t.Run("Missing ID Rejected", func(t *testing.T) {
		if _, _, _, err := Track(services.SpotifyTrack{Name: "No ID"}); err == nil {
			t.Error("track without id should fail normalization")
		}
	})

	t.Run("Bad Album Tolerated", func(t *testing.T) {
		raw := sampleTrack("track-1", "Some Song")
		raw.Album = services.SpotifyAlbum{}

		track, album, _, err := Track(raw)
		if err != nil {
			t.Fatalf("track with missing album should still normalize: %v", err)
		}
		if album != nil {
			t.Error("expected no album record")
		}
		if track.AlbumID != "" {
			t.Errorf("expected empty album reference, got %q", track.AlbumID)
		}
		if track.ReleaseDate.Known() {
			t.Error("release date should be unknown without an album")
		}
	})

	t.Run("Popularity Clamped", func(t *testing.T) {
		raw := sampleTrack("track-1", "Some Song")
		raw.Popularity = 250

		track, _, _, err := Track(raw)
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}
		if track.Popularity != 100 {
			t.Errorf("expected popularity clamped to 100, got %d", track.Popularity)
		}
	})
}

func TestLikedTrackPage(t *testing.T) {
	t.Run("Marks Liked With Timestamp", func(t *testing.T) {
		bundle, err := LikedTrackPage([]services.SpotifySavedTrack{
			{AddedAt: "2024-05-01T12:30:00Z", Track: sampleTrack("track-1", "Some Song")},
		})
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}

		track := bundle.Tracks[0]
		if !track.IsLiked {
			t.Error("saved track should be marked liked")
		}
		want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		if !track.LikedAt.Equal(want) {
			t.Errorf("expected liked-at %v, got %v", want, track.LikedAt)
		}
	})

	t.Run("Skips Malformed Record", func(t *testing.T) {
		bundle, err := LikedTrackPage([]services.SpotifySavedTrack{
			{AddedAt: "2024-05-01T12:30:00Z", Track: sampleTrack("track-1", "Some Song")},
			{Track: services.SpotifyTrack{Name: "No ID"}},
		})
		if err != nil {
			t.Fatalf("page with one bad record should survive: %v", err)
		}
		if len(bundle.Tracks) != 1 {
			t.Errorf("expected 1 surviving track, got %d", len(bundle.Tracks))
		}
		if len(bundle.Warnings) != 1 || bundle.Warnings[0].Index != 1 {
			t.Errorf("expected warning for record 1, got %v", bundle.Warnings)
		}
	})

	t.Run("All Bad Is PageError", func(t *testing.T) {
		_, err := LikedTrackPage([]services.SpotifySavedTrack{
			{Track: services.SpotifyTrack{Name: "No ID"}},
			{Track: services.SpotifyTrack{}},
		})
		if err == nil {
			t.Fatal("expected page error")
		}

		var pageErr *PageError
		if !errors.As(err, &pageErr) {
			t.Fatalf("expected *PageError, got %T", err)
		}
		if !errors.Is(err, shared.ErrPageNormalization) {
			t.Error("page error should match the normalization sentinel")
		}
		if len(pageErr.Warnings) != 2 {
			t.Errorf("expected 2 warnings, got %d", len(pageErr.Warnings))
		}
	})

	t.Run("Empty Page", func(t *testing.T) {
		bundle, err := LikedTrackPage(nil)
		if err != nil {
			t.Fatalf("empty page should not error: %v", err)
		}
		if len(bundle.Tracks) != 0 {
			t.Error("expected empty bundle")
		}
	})
}

func TestPlaylistTrackPage(t *testing.T) {
	t.Run("Positions Continue Across Pages", func(t *testing.T) {
		one := sampleTrack("track-1", "One")
		two := sampleTrack("track-2", "Two")

		_, entries, err := PlaylistTrackPage([]services.SpotifyPlaylistTrack{
			{AddedAt: "2024-05-01T00:00:00Z", Track: &one},
			{Track: &two},
		}, 100)
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}

		if entries[0].Position != 100 || entries[1].Position != 101 {
			t.Errorf("expected positions 100, 101; got %d, %d", entries[0].Position, entries[1].Position)
		}
	})

	t.Run("Null Track Keeps Remote Position", func(t *testing.T) {
		one := sampleTrack("track-1", "One")
		two := sampleTrack("track-2", "Two")

		_, entries, err := PlaylistTrackPage([]services.SpotifyPlaylistTrack{
			{Track: &one},
			{Track: nil}, // removed or unavailable on the remote
			{Track: &two},
		}, 0)
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}

		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[1].Position != 2 {
			t.Errorf("surviving track should keep its remote position 2, got %d", entries[1].Position)
		}
	})

	t.Run("Liked Flag Untouched", func(t *testing.T) {
		one := sampleTrack("track-1", "One")
		bundle, _, err := PlaylistTrackPage([]services.SpotifyPlaylistTrack{{Track: &one}}, 0)
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}
		if bundle.Tracks[0].IsLiked {
			t.Error("playlist page must not mark tracks liked")
		}
	})
}

func TestArtist(t *testing.T) {
	t.Run("Genres Normalized", func(t *testing.T) {
		artist, err := Artist(services.SpotifyArtist{
			ID:     "artist-1",
			Name:   "Some Artist",
			Genres: []string{"Jazz", "jazz", "Bebop"},
		})
		if err != nil {
			t.Fatalf("normalization failed: %v", err)
		}
		if len(artist.Genres) != 2 || artist.Genres[0] != "bebop" || artist.Genres[1] != "jazz" {
			t.Errorf("expected deduplicated sorted genres, got %v", artist.Genres)
		}
	})

	t.Run("Missing Name Rejected", func(t *testing.T) {
		if _, err := Artist(services.SpotifyArtist{ID: "artist-1"}); err == nil {
			t.Error("artist without name should fail normalization")
		}
	})
}

func TestFeatures(t *testing.T) {
	features, err := Features(services.SpotifyAudioFeatures{ID: "track-1", Tempo: 120.5, Key: 7})
	if err != nil {
		t.Fatalf("normalization failed: %v", err)
	}
	if features.TrackID != "track-1" || features.Tempo != 120.5 || features.Key != 7 {
		t.Errorf("unexpected features: %+v", features)
	}

	if _, err := Features(services.SpotifyAudioFeatures{}); err == nil {
		t.Error("features without track id should fail normalization")
	}
}
