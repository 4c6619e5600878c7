// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize config file, database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// syncCommand mirrors remote collections into the local store.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync the remote library into the local mirror",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Only sync liked tracks",
			},
			&cli.BoolFlag{
				Name:  "playlists",
				Usage: "Only sync playlists",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show interactive progress view",
			},
		},
		Action: r.Sync,
	}
}

// pruneCommand removes local rows no longer reachable from the remote library.
func pruneCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Clear stale liked flags and delete tracks in no playlist (destructive)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: r.Prune,
	}
}

// createUnsortedCommand files liked tracks missing from matching playlists
// into a new remote playlist.
func createUnsortedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "create-unsorted",
		Aliases: []string{"unsorted"},
		Usage:   "Create a playlist of liked tracks not in any playlist matching a name pattern",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "pattern",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Usage: "Maximum number of tracks in the new playlist (0 = no cap)",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Track ordering: popularity, date_added, release_date or random",
				Value: "date_added",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Playlist name (default: auto-numbered \"<pattern> - vol. NN\")",
			},
		},
		Action: r.CreateUnsorted,
	}
}

// topArtistsCommand ranks artists by track count within matching playlists.
func topArtistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "top-artists",
		Usage: "Rank artists by distinct track count, optionally scoped to matching playlists",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "pattern",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of artists to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "liked-only",
				Usage: "Only count liked tracks",
			},
		},
		Action: r.TopArtists,
	}
}

// showPlaylistCommand prints a locally-mirrored playlist with its tracks.
func showPlaylistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "show-playlist",
		Usage: "Show a mirrored playlist matched by name substring",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "name",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of tracks to print",
				Value: 25,
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Export the full track list to {path}_tracks.csv",
			},
		},
		Action: r.ShowPlaylist,
	}
}

// apiInfoCommand dumps the remote profile and a sample payload.
func apiInfoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api-info",
		Usage: "Show the authenticated profile and a sample track payload",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.APIInfo,
	}
}
