package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
)

func sampleRows() []TrackRow {
	return []TrackRow{
		{
			Track:   models.Track{ID: "track1", Name: "Song One", DurationMS: 180000, Popularity: 80, IsLiked: true},
			Artists: []string{"Artist One"},
		},
		{
			Track:   models.Track{ID: "track2", Name: "Song Two", DurationMS: 240000, Popularity: 45},
			Artists: []string{"Artist Two", "Artist Three"},
		},
	}
}

func TestFormatTrackList(t *testing.T) {
	output := FormatTrackList(sampleRows())

	if !strings.Contains(output, "1. Artist One - Song One [3:00]") {
		t.Errorf("missing first track line, got: %s", output)
	}
	if !strings.Contains(output, "2. Artist Two, Artist Three - Song Two [4:00]") {
		t.Errorf("multiple artists should be comma-joined, got: %s", output)
	}

	t.Run("Unknown Artist Fallback", func(t *testing.T) {
		rows := []TrackRow{{Track: models.Track{ID: "t", Name: "Orphan", DurationMS: 61000}}}
		output := FormatTrackList(rows)
		if !strings.Contains(output, "(unknown artist) - Orphan [1:01]") {
			t.Errorf("expected unknown artist fallback, got: %s", output)
		}
	})
}

func TestFormatPlaylist(t *testing.T) {
	playlist := &models.Playlist{
		ID:          "pl1",
		Name:        "Jazz vol 1",
		Description: "late night picks",
		OwnerID:     "user-1",
	}

	output := FormatPlaylist(playlist, sampleRows())

	if !strings.Contains(output, "Jazz vol 1") {
		t.Errorf("missing playlist name, got: %s", output)
	}
	if !strings.Contains(output, "Description: late night picks") {
		t.Errorf("missing description, got: %s", output)
	}
	if !strings.Contains(output, "Tracks: 2") {
		t.Errorf("missing track count, got: %s", output)
	}
	if !strings.Contains(output, "Song One") {
		t.Errorf("missing track listing, got: %s", output)
	}
}

func TestFormatTopArtists(t *testing.T) {
	counts := []repositories.ArtistPlayCount{
		{Artist: models.Artist{ID: "a1", Name: "Alpha", Genres: []string{"jazz", "soul"}}, Count: 12},
		{Artist: models.Artist{ID: "a2", Name: "Beta"}, Count: 3},
	}

	output := FormatTopArtists(counts)

	if !strings.Contains(output, "Alpha") || !strings.Contains(output, "12") {
		t.Errorf("missing ranked artist, got: %s", output)
	}
	if !strings.Contains(output, "jazz, soul") {
		t.Errorf("missing genre line, got: %s", output)
	}

	t.Run("Empty", func(t *testing.T) {
		if got := FormatTopArtists(nil); got != "No artists found.\n" {
			t.Errorf("unexpected empty output: %q", got)
		}
	})
}

func TestFormatSyncSummary(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	entries := []models.SyncLogEntry{
		{Collection: models.CollectionLikedTracks, Outcome: models.OutcomeSuccess,
			ItemCount: 250, StartedAt: started, CompletedAt: started.Add(3 * time.Second)},
		{Collection: models.CollectionPlaylists, Outcome: models.OutcomeResumable,
			ItemCount: 10, StartedAt: started, CompletedAt: started.Add(time.Second),
			Error: "remote service unavailable"},
	}

	output := FormatSyncSummary(entries)

	if !strings.Contains(output, "liked_tracks") || !strings.Contains(output, "success") {
		t.Errorf("missing success line, got: %s", output)
	}
	if !strings.Contains(output, "250 items") {
		t.Errorf("missing item count, got: %s", output)
	}
	if !strings.Contains(output, "remote service unavailable") {
		t.Errorf("failed entries should show their error, got: %s", output)
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleRows())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "ID,Title,Artists,Duration,Popularity,Liked") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "track1,Song One,Artist One,3:00,80,true") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, `"Artist Two, Artist Three"`) {
			t.Errorf("comma-joined artists should be quoted, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		playlist := &models.Playlist{ID: "pl1", Name: "Jazz vol 1", Description: "late night picks"}

		data, err := ExportToMarkdown(playlist, sampleRows())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "# Jazz vol 1") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Description**: late night picks") {
			t.Errorf("Markdown missing description")
		}
		if !strings.Contains(output, "**Tracks**: 2") {
			t.Errorf("Markdown missing track count")
		}
		if !strings.Contains(output, "1. Artist One - Song One [3:00]") {
			t.Errorf("Markdown missing track listing, got: %s", output)
		}
	})

	t.Run("WriteCSVExport", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "jazz_vol_1")

		path, err := WriteCSVExport(sampleRows(), base)
		if err != nil {
			t.Fatalf("WriteCSVExport failed: %v", err)
		}
		if path != base+"_tracks.csv" {
			t.Errorf("unexpected export path %q", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(string(data), "Song One") {
			t.Errorf("export file missing track data")
		}
	})
}
