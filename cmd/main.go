package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "cratedig",
		Usage:    "Mirror, query and reorganize your Spotify library locally",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrAuthExpired):
			logger.Error("authentication expired; refresh your Spotify credentials and re-run", "error", err)
			os.Exit(2)
		case errors.Is(err, shared.ErrRemoteUnavailable):
			logger.Error("remote unavailable; re-run sync to resume from the recorded cursor", "error", err)
			os.Exit(3)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
