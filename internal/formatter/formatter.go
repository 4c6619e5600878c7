// package formatter renders library query results for terminal display and
// exports track listings to CSV, Markdown, and plain text files.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/shared"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// TrackRow pairs a track with the display names of its artists. The store
// holds artist links by ID only, so callers resolve names before formatting.
type TrackRow struct {
	Track   models.Track
	Artists []string
}

// Rows builds TrackRows from tracks and an artist-name lookup keyed by track ID.
func Rows(tracks []models.Track, names map[string][]string) []TrackRow {
	rows := make([]TrackRow, len(tracks))
	for i, track := range tracks {
		rows[i] = TrackRow{Track: track, Artists: names[track.ID]}
	}
	return rows
}

func (r TrackRow) artistLine() string {
	if len(r.Artists) == 0 {
		return "(unknown artist)"
	}
	return strings.Join(r.Artists, ", ")
}

// FormatTrackList renders a numbered plain-text track listing.
func FormatTrackList(rows []TrackRow) string {
	var buf bytes.Buffer

	for i, row := range rows {
		duration := shared.FormatDuration(row.Track.DurationMS)
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n", i+1, row.artistLine(), row.Track.Name, duration))
	}

	return buf.String()
}

// FormatPlaylist renders playlist metadata followed by its track listing.
func FormatPlaylist(playlist *models.Playlist, rows []TrackRow) string {
	var buf bytes.Buffer

	buf.WriteString(headerStyle.Render(fmt.Sprintf("Playlist: %s", playlist.Name)))
	buf.WriteString("\n")
	if playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("Owner: %s\n", playlist.OwnerID))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(rows)))

	buf.WriteString(FormatTrackList(rows))
	return buf.String()
}

// FormatTopArtists renders an aligned artist ranking table.
func FormatTopArtists(counts []repositories.ArtistPlayCount) string {
	if len(counts) == 0 {
		return "No artists found.\n"
	}

	nameWidth := len("Artist")
	for _, c := range counts {
		if len(c.Artist.Name) > nameWidth {
			nameWidth = len(c.Artist.Name)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(headerStyle.Render(fmt.Sprintf("%-4s %-*s %s", "#", nameWidth, "Artist", "Tracks")))
	buf.WriteString("\n")

	for i, c := range counts {
		buf.WriteString(fmt.Sprintf("%-4d %-*s %d\n", i+1, nameWidth, c.Artist.Name, c.Count))
		if len(c.Artist.Genres) > 0 {
			buf.WriteString(dimStyle.Render(fmt.Sprintf("     %s", strings.Join(c.Artist.Genres, ", "))))
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// FormatSyncSummary renders one line per ledger entry from a sync pass.
func FormatSyncSummary(entries []models.SyncLogEntry) string {
	var buf bytes.Buffer

	for _, entry := range entries {
		elapsed := entry.CompletedAt.Sub(entry.StartedAt).Round(10 * time.Millisecond)
		buf.WriteString(fmt.Sprintf("%-16s %-10s %6d items  %s\n",
			entry.Collection, entry.Outcome, entry.ItemCount, elapsed))
		if entry.Error != "" {
			buf.WriteString(fmt.Sprintf("  %s\n", entry.Error))
		}
	}

	return buf.String()
}

// ExportToCSV converts track rows to CSV with columns: ID, Title, Artists, Duration, Popularity, Liked
func ExportToCSV(rows []TrackRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artists", "Duration", "Popularity", "Liked"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Track.ID,
			row.Track.Name,
			row.artistLine(),
			shared.FormatDuration(row.Track.DurationMS),
			strconv.Itoa(row.Track.Popularity),
			strconv.FormatBool(row.Track.IsLiked),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist and its rows to Markdown
func ExportToMarkdown(playlist *models.Playlist, rows []TrackRow) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", playlist.Name))

	if playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(rows)))

	buf.WriteString("## Tracks\n\n")
	for i, row := range rows {
		duration := shared.FormatDuration(row.Track.DurationMS)
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n", i+1, row.artistLine(), row.Track.Name, duration))
	}

	return buf.Bytes(), nil
}

// WriteCSVExport writes track rows to {base}_tracks.csv.
func WriteCSVExport(rows []TrackRow, baseFilepath string) (string, error) {
	csvData, err := ExportToCSV(rows)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return tracksFile, nil
}
