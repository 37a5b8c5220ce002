package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/plarchive/internal/shared"
	"github.com/urfave/cli/v3"
)

// Add registers a playlist for archiving and optionally sets its alias.
//
// Accepts a playlist ID or an open.spotify.com playlist link.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	id := playlistID(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	store := r.store()
	if err := store.Init(); err != nil {
		return err
	}

	added, err := store.AddPlaylist(id)
	if err != nil {
		return err
	}

	if cmd.IsSet("alias") {
		if err := store.SetAlias(id, cmd.String("alias")); err != nil {
			return err
		}
	}

	if !added {
		return r.writePlain("Playlist %s is already registered\n", id)
	}

	r.logger.Info("Registered playlist", "playlist", id)
	return r.writePlain("✓ Registered playlist %s\nRun 'plarchive update' to archive it\n", id)
}

// playlistID extracts the ID from a playlist link, or returns the argument trimmed.
func playlistID(arg string) string {
	arg = strings.TrimSpace(arg)
	if _, rest, ok := strings.Cut(arg, "/playlist/"); ok {
		arg = rest
	}
	if i := strings.IndexAny(arg, "?#/"); i >= 0 {
		arg = arg[:i]
	}
	return arg
}
