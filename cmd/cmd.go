// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are inherited by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

// updateCommand archives every registered playlist
func updateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Fetch registered playlists and update the archive",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Commit and push the archive after a successful run",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of playlists fetched concurrently (default: archive.workers)",
			},
		},
		Action: r.Update,
	}
}

// pushCommand publishes pending archive changes
func pushCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "push",
		Usage:  "Commit and push pending archive changes",
		Action: r.Push,
	}
}

// addCommand registers a playlist
func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Register a playlist for archiving",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "alias",
				Aliases: []string{"a"},
				Usage:   "Name to archive the playlist under instead of its own (empty removes it)",
			},
		},
		Action: r.Add,
	}
}

// historyCommand shows recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded archive runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of rows to show",
				Value:   10,
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Show the snapshots of a single playlist",
			},
			&cli.IntFlag{
				Name:  "run",
				Usage: "Show the snapshots of a run by number",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.History,
	}
}

// setupCommand initializes the configuration, archive layout and run history.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml, the archive layout and the run history database",
		Action: r.Setup,
	}
}
