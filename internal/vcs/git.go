// package vcs commits and pushes archive updates with the git command line client
package vcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plarchive/internal/shared"
)

// CommitTimeLayout formats the run time in commit messages.
const CommitTimeLayout = "2006-01-02 15:04:05"

// Runner executes a command in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner is the [Runner] backed by [exec.CommandContext].
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Git publishes changes in a working tree.
type Git struct {
	dir       string
	cfg       shared.GitConfig
	runNumber string
	logger    *log.Logger
	run       Runner
}

// New creates a [Git] for the working tree at dir.
//
// The run number in commit messages comes from [shared.EnvRunNumber]. The remote URL is expanded from the
// environment, so tokens can be kept out of the configuration file.
func New(cfg shared.GitConfig, dir string, logger *log.Logger) *Git {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	cfg.RemoteURL = os.ExpandEnv(cfg.RemoteURL)

	return &Git{
		dir:       dir,
		cfg:       cfg,
		runNumber: os.Getenv(shared.EnvRunNumber),
		logger:    logger,
		run:       ExecRunner,
	}
}

// SetRunner replaces the command runner.
func (g *Git) SetRunner(r Runner) {
	g.run = r
}

// SetRunNumber overrides the run number used in commit messages.
func (g *Git) SetRunNumber(n string) {
	g.runNumber = n
}

// CommitMessage returns the message for a commit made at now.
func (g *Git) CommitMessage(now time.Time) string {
	run := "Run"
	if g.runNumber != "" {
		run = "Run: " + g.runNumber
	}
	msg := fmt.Sprintf("%s (%s)", run, now.Format(CommitTimeLayout))
	return strings.TrimSpace(g.cfg.CommitPrefix + " " + msg)
}

// HasChanges reports whether git sees uncommitted changes under paths.
func (g *Git) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	out, err := g.git(ctx, "status", false, append([]string{"status", "--porcelain", "--"}, paths...)...)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// Publish commits the changes under paths and pushes them. It reports false when there was nothing to publish.
func (g *Git) Publish(ctx context.Context, now time.Time, paths ...string) (bool, error) {
	changed, err := g.HasChanges(ctx, paths...)
	if err != nil {
		return false, err
	}
	if !changed {
		g.logger.Info("No changes, not pushing")
		return false, nil
	}

	if g.cfg.UserName != "" {
		if _, err := g.git(ctx, "configure name", false, "config", "user.name", g.cfg.UserName); err != nil {
			return false, err
		}
	}
	if g.cfg.UserEmail != "" {
		if _, err := g.git(ctx, "configure email", false, "config", "user.email", g.cfg.UserEmail); err != nil {
			return false, err
		}
	}

	if _, err := g.git(ctx, "stage changes", false, append([]string{"add", "-A", "--"}, paths...)...); err != nil {
		return false, err
	}

	message := g.CommitMessage(now)
	if _, err := g.git(ctx, "commit changes", false, "commit", "-m", message); err != nil {
		return false, err
	}

	if g.cfg.RemoteURL != "" {
		if _, err := g.git(ctx, "set remote", true, "remote", "set-url", g.cfg.Remote, g.cfg.RemoteURL); err != nil {
			g.logger.Debug("Remote missing, adding it", "remote", g.cfg.Remote)
			if _, err := g.git(ctx, "add remote", true, "remote", "add", g.cfg.Remote, g.cfg.RemoteURL); err != nil {
				return false, err
			}
		}
	}

	refspec := "HEAD:" + g.cfg.Branch
	if _, err := g.git(ctx, "push changes", false, "push", g.cfg.Remote, refspec); err != nil {
		return false, err
	}

	g.logger.Info("Pushed changes", "message", message, "remote", g.cfg.Remote, "branch", g.cfg.Branch)
	return true, nil
}

// git runs a git subcommand. When secret is set, arguments and output are kept out of logs and errors.
func (g *Git) git(ctx context.Context, step string, secret bool, args ...string) ([]byte, error) {
	if secret {
		g.logger.Debug("Running git", "step", step)
	} else {
		g.logger.Debug("Running git", "step", step, "args", strings.Join(args, " "))
	}

	out, err := g.run(ctx, g.dir, "git", args...)
	if err != nil {
		if secret {
			return out, fmt.Errorf("%w: failed to %s", shared.ErrGit, step)
		}
		return out, fmt.Errorf("%w: failed to %s: %v: %s", shared.ErrGit, step, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
