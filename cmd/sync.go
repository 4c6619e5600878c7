package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cratedig/internal/formatter"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
	"github.com/desertthunder/cratedig/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sync mirrors the remote library into the local store.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	library, err := r.remoteLibrary(ctx)
	if err != nil {
		return err
	}

	opts := tasks.SyncOpts{
		LikedOnly:     cmd.Bool("liked"),
		PlaylistsOnly: cmd.Bool("playlists"),
	}

	if cmd.Bool("tui") {
		// Redirect logs to file to avoid interfering with TUI rendering
		fileLogger, err := shared.NewFileLogger("./tmp/cratedig-tui.log")
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)

		engine := tasks.NewSyncEngine(library, store, fileLogger)
		model := ui.NewModel(ctx, engine, opts)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	}

	engine := tasks.NewSyncEngine(library, store, r.logger)
	entries, err := engine.Run(ctx, nil, opts)

	if len(entries) > 0 {
		r.writePlain("%s", formatter.FormatSyncSummary(entries))
	}
	return err
}

// Prune clears stale liked flags and deletes tracks reachable from nothing.
func (r *Runner) Prune(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		r.writePlain("This deletes local tracks that are neither liked nor in any playlist.\n")
		r.writePlain("Re-run with --yes to proceed.\n")
		return nil
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

	engine := tasks.NewSyncEngine(library, store, r.logger)
	result, err := engine.Prune(ctx, nil)
	if err != nil {
		return err
	}

	r.writePlain("✓ Prune complete: %d liked flags cleared, %d tracks deleted\n",
		result.LikedCleared, result.TracksDeleted)
	return nil
}
