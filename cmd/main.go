package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/plarchive/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "plarchive",
		Usage:    "Archive Spotify playlists as plain, pretty and cumulative markdown views",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   runner.before,
		Commands: runner.register(),
	}

	err := app.Run(ctx, os.Args)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted")
		os.Exit(130)
	case errors.Is(err, shared.ErrPartialFailure):
		logger.Error("archive run incomplete", "error", err)
		os.Exit(2)
	default:
		logger.Fatalf("application error: %v", err)
	}
}
