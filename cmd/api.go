package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// APIInfo dumps the authenticated profile and a sample track payload, useful
// for checking credentials and inspecting the fields the remote returns.
func (r *Runner) APIInfo(ctx context.Context, cmd *cli.Command) error {
	pretty := cmd.Bool("pretty")

	library, err := r.remoteLibrary(ctx)
	if err != nil {
		return err
	}

	profile, err := library.UserProfile(ctx)
	if err != nil {
		return err
	}

	r.writePlain("Profile:\n")
	if err := r.writeJSON(profile, pretty); err != nil {
		return err
	}

	page, err := library.LikedTracks(ctx, "")
	if err != nil {
		return err
	}
	if len(page.Items) == 0 {
		return r.writePlain("No liked tracks to sample.\n")
	}

	r.writePlainln("Sample liked track payload:")
	return r.writeJSON(page.Items[0], pretty)
}
