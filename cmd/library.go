package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/cratedig/internal/formatter"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
	"github.com/urfave/cli/v3"
)

// CreateUnsorted files liked tracks absent from matching playlists into a
// new remote playlist.
func (r *Runner) CreateUnsorted(ctx context.Context, cmd *cli.Command) error {
	pattern := strings.TrimSpace(cmd.StringArg("pattern"))
	if pattern == "" {
		return fmt.Errorf("%w: pattern argument is required", shared.ErrMissingArgument)
	}

	policy, err := tasks.ParseSortPolicy(cmd.String("sort"))
	if err != nil {
		return err
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	library, err := r.remoteLibrary(ctx)
	if err != nil {
		return err
	}

	rec := tasks.NewReconciler(library, store, r.logger)
	created, err := rec.CreateUnsorted(ctx, nil, pattern, tasks.CreateUnsortedOpts{
		Count: cmd.Int("count"),
		Sort:  policy,
		Name:  cmd.String("name"),
	})
	if err != nil {
		var writeErr *services.RemoteWriteError
		if errors.As(err, &writeErr) {
			r.writePlain("✗ Failed to create %q remotely; nothing was lost locally.\n", writeErr.PlaylistName)
			r.writePlain("Intended tracks (%d): %s\n", len(writeErr.TrackIDs), strings.Join(writeErr.TrackIDs, ", "))
		}
		return err
	}

	r.writePlain("✓ Created playlist %q with %d tracks\n", created.Name, len(created.Tracks))
	if created.URL != "" {
		r.writePlain("%s\n", created.URL)
	}
	return nil
}

// TopArtists prints the artist ranking table for matching playlists.
func (r *Runner) TopArtists(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rec := tasks.NewReconciler(nil, store, r.logger)
	counts, err := rec.TopArtists(cmd.StringArg("pattern"), cmd.Bool("liked-only"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.writePlain("%s", formatter.FormatTopArtists(counts))
}

// ShowPlaylist prints a mirrored playlist's details and leading tracks.
func (r *Runner) ShowPlaylist(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: name argument is required", shared.ErrMissingArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := store.Playlists().MatchName(name)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: no mirrored playlist matches %q", shared.ErrNotFound, name)
	}
	if len(matches) > 1 {
		r.writePlain("%d playlists match %q; showing the first:\n", len(matches), name)
		for _, m := range matches {
			r.writePlain("  - %s\n", m.Name)
		}
		r.writePlain("\n")
	}

	playlist, err := store.Playlists().Get(matches[0].ID)
	if err != nil {
		return err
	}

	allRows, err := resolveRows(store, playlist.TrackIDs())
	if err != nil {
		return err
	}

	shown := allRows
	if limit := cmd.Int("limit"); limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	r.writePlain("%s", formatter.FormatPlaylist(playlist, shown))
	if len(shown) < len(allRows) {
		r.writePlain("... and %d more\n", len(allRows)-len(shown))
	}

	if base := cmd.String("csv"); base != "" {
		path, err := formatter.WriteCSVExport(allRows, base)
		if err != nil {
			return err
		}
		r.writePlainln("Exported %d tracks to %s", len(allRows), path)
	}

	return nil
}

// resolveRows loads tracks and their artist names for display, preserving order.
func resolveRows(store *repositories.Store, trackIDs []string) ([]formatter.TrackRow, error) {
	names, err := store.Artists().NamesByTrack(trackIDs)
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	for _, id := range trackIDs {
		track, err := store.Tracks().Get(id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		tracks = append(tracks, *track)
	}

	return formatter.Rows(tracks, names), nil
}
