package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/desertthunder/plarchive/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the configuration template, creates the archive layout and migrates the run history database.
//
// An existing configuration file is kept as is.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}
		r.writePlain("✓ Created %s\n", r.configPath)
	} else {
		r.logger.Info("using existing config file", "path", r.configPath)
	}

	store := r.store()
	if err := store.Init(); err != nil {
		return err
	}
	if _, err := store.UpdateReadme(r.views().URLs()); err != nil {
		return err
	}
	r.writePlain("✓ Archive initialized in %s\n", store.Root())

	db, err := r.history()
	if err != nil {
		return err
	}
	if db != nil {
		db.Close()
		r.logger.Info("setup complete for database", "path", r.cfg().Database.Path)
		r.writePlain("✓ Run history ready at %s\n", r.cfg().Database.Path)
	}

	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set %s and %s (or edit %s)\n", shared.EnvSpotifyClientID, shared.EnvSpotifyClientSecret, r.configPath)
	r.writePlain("2. Run 'plarchive add <playlist id>' to register playlists\n")
	r.writePlain("3. Run 'plarchive update' to archive them\n")

	return nil
}
