package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/shared"
	tu "github.com/desertthunder/plarchive/internal/testing"
	"github.com/urfave/cli/v3"
)

var testNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

// fakeGit records git invocations and reports status as configured.
type fakeGit struct {
	commands []string
	status   string
}

func (f *fakeGit) run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.commands = append(f.commands, strings.Join(args, " "))
	if args[0] == "status" {
		return []byte(f.status), nil
	}
	return nil, nil
}

type testEnv struct {
	runner  *Runner
	output  *bytes.Buffer
	fetcher *tu.MockFetcher
	git     *fakeGit
	root    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	config := shared.DefaultConfig()
	config.Archive.Root = root
	config.Database.Path = filepath.Join(root, "history.db")

	env := &testEnv{
		output:  &bytes.Buffer{},
		fetcher: tu.NewMockFetcher(),
		git:     &fakeGit{},
		root:    root,
	}
	env.runner = NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(root, "config.toml"),
		Fetcher:    env.fetcher,
		GitRunner:  env.git.run,
		Logger:     log.New(io.Discard),
		Output:     env.output,
		Now:        func() time.Time { return testNow },
	})
	return env
}

// run executes the application with args, as main does.
func (e *testEnv) run(args ...string) error {
	return runApp(e.runner, args...)
}

func runApp(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "plarchive",
		Flags:    globalFlags(),
		Before:   r.before,
		Commands: r.register(),
	}
	return app.Run(context.Background(), append([]string{"plarchive"}, args...))
}

func morningMix() *models.Playlist {
	return &models.Playlist{
		ID:   "mix",
		Name: "Morning Mix",
		Tracks: []models.Track{
			tu.NewTrack("t1", "Sunrise", "Ann", "Dawn", 200),
			tu.NewTrack("t2", "Coffee", "Bob", "Brew", 180),
		},
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			fetcher := tu.NewMockFetcher()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Fetcher:    fetcher,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.fetcher != fetcher {
				t.Error("expected fetcher to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.gitRunner == nil || runner.now == nil {
				t.Error("expected git runner and clock defaults")
			}
			if runner.cfg() == nil {
				t.Error("expected default config outside of a command")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		var names []string
		for _, c := range NewRunner(RunnerOpts{}).register() {
			names = append(names, c.Name)
		}
		if got := strings.Join(names, ","); got != "update,push,add,history,setup" {
			t.Errorf("unexpected commands %s", got)
		}
	})

	t.Run("loads config file and environment", func(t *testing.T) {
		root := t.TempDir()
		configPath := filepath.Join(root, "config.toml")
		tu.MustWriteFile(t, configPath, "[archive]\nroot = \""+filepath.ToSlash(root)+"\"\n\n[log]\nlevel = \"warn\"\n")
		t.Setenv(shared.EnvSpotifyClientID, "env-id")
		t.Setenv(shared.EnvSpotifyClientSecret, "env-secret")

		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
		if err := runApp(runner, "--config", configPath, "add", "abc"); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(root, "playlists", "plain", "abc"))
		if runner.config.Credentials.Spotify.ClientID != "env-id" {
			t.Errorf("expected environment credentials, got %q", runner.config.Credentials.Spotify.ClientID)
		}
		if runner.logger.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level from config, got %v", runner.logger.GetLevel())
		}
	})

	t.Run("debug flag", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("--debug", "add", "abc"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if env.runner.logger.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", env.runner.logger.GetLevel())
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, configPath, "[archive\n")

		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
		if err := runApp(runner, "--config", configPath, "add", "abc"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestAdd(t *testing.T) {
	t.Run("registers with alias", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("add", "--alias", "My Mix", "abc"); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(env.root, "playlists", "plain", "abc"))
		if got := tu.MustReadFile(t, filepath.Join(env.root, "playlists", "aliases", "abc")); got != "My Mix\n" {
			t.Errorf("unexpected alias %q", got)
		}
		if !strings.Contains(env.output.String(), "Registered playlist abc") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("already registered", func(t *testing.T) {
		env := newTestEnv(t)

		for range 2 {
			if err := env.run("add", "abc"); err != nil {
				t.Fatalf("add failed: %v", err)
			}
		}
		if !strings.Contains(env.output.String(), "already registered") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("accepts playlist links", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("add", "https://open.spotify.com/playlist/37i9dQZF1DX?si=abc"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(env.root, "playlists", "plain", "37i9dQZF1DX"))
	})

	t.Run("missing ID", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("add"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestPlaylistID(t *testing.T) {
	tc := []struct {
		arg  string
		want string
	}{
		{"abc", "abc"},
		{"  abc  ", "abc"},
		{"https://open.spotify.com/playlist/abc", "abc"},
		{"https://open.spotify.com/playlist/abc?si=123", "abc"},
		{"https://open.spotify.com/user/x/playlist/abc/", "abc"},
		{"", ""},
	}

	for _, tt := range tc {
		if got := playlistID(tt.arg); got != tt.want {
			t.Errorf("playlistID(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestUpdate(t *testing.T) {
	t.Run("archives and records the run", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.SetPlaylist(morningMix())
		if err := env.run("add", "mix"); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		if err := env.run("update", "--workers", "2"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(env.root, "playlists", "pretty", "Morning Mix.md"))
		tu.AssertFileExists(t, filepath.Join(env.root, "playlists", "cumulative", "Morning Mix.md"))
		tu.AssertFileExists(t, filepath.Join(env.root, "README.md"))

		out := env.output.String()
		for _, want := range []string{"Archive Run Complete", "Status: succeeded", "Playlists: 1 (1 changed, 0 removed, 0 failed)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
		if len(env.git.commands) != 0 {
			t.Errorf("expected no git commands without --push, got %v", env.git.commands)
		}

		env.output.Reset()
		if err := env.run("history", "--json"); err != nil {
			t.Fatalf("history failed: %v", err)
		}

		var runs []runView
		if err := json.Unmarshal(env.output.Bytes(), &runs); err != nil {
			t.Fatalf("failed to decode history: %v\n%s", err, env.output.String())
		}
		if len(runs) != 1 || runs[0].Status != "succeeded" || runs[0].Number != 1 || runs[0].Pushed {
			t.Errorf("unexpected runs: %+v", runs)
		}
	})

	t.Run("pushes after a successful run", func(t *testing.T) {
		env := newTestEnv(t)
		env.git.status = " M playlists/plain/mix\n"
		env.fetcher.SetPlaylist(morningMix())
		if err := env.run("add", "mix"); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		if err := env.run("update", "--push"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if len(env.git.commands) == 0 || !strings.HasPrefix(env.git.commands[len(env.git.commands)-1], "push origin HEAD:main") {
			t.Errorf("expected a push, got %v", env.git.commands)
		}
		if env.git.commands[0] != "status --porcelain -- playlists README.md" {
			t.Errorf("expected archive paths to be staged, got %v", env.git.commands[0])
		}

		env.output.Reset()
		if err := env.run("history", "--json"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var runs []runView
		if err := json.Unmarshal(env.output.Bytes(), &runs); err != nil {
			t.Fatalf("failed to decode history: %v", err)
		}
		if len(runs) != 1 || !runs[0].Pushed {
			t.Errorf("expected pushed run, got %+v", runs)
		}
	})

	t.Run("partial failure is not pushed", func(t *testing.T) {
		env := newTestEnv(t)
		env.git.status = " M x\n"
		env.fetcher.SetPlaylist(morningMix())
		env.fetcher.SetError("broken", shared.ErrAPIRequest)
		for _, id := range []string{"mix", "broken"} {
			if err := env.run("add", id); err != nil {
				t.Fatalf("add failed: %v", err)
			}
		}

		err := env.run("update", "--push")
		if !errors.Is(err, shared.ErrPartialFailure) {
			t.Fatalf("expected ErrPartialFailure, got %v", err)
		}
		if len(env.git.commands) != 0 {
			t.Errorf("expected no git commands, got %v", env.git.commands)
		}
		if !strings.Contains(env.output.String(), "broken: API request failed") {
			t.Errorf("expected failed playlist in summary:\n%s", env.output.String())
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Archive.Root = t.TempDir()
		config.Credentials.Spotify = shared.SpotifyConfig{}

		runner := NewRunner(RunnerOpts{Config: config, Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
		if err := runApp(runner, "update"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestPush(t *testing.T) {
	t.Run("nothing to push", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("push"); err != nil {
			t.Fatalf("push failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Nothing to push") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("publishes changes", func(t *testing.T) {
		env := newTestEnv(t)
		env.git.status = "?? README.md\n"
		if err := env.run("push"); err != nil {
			t.Fatalf("push failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Pushed archive changes") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})
}

func TestHistory(t *testing.T) {
	t.Run("tables", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.SetPlaylist(morningMix())
		if err := env.run("add", "mix"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if err := env.run("update"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		env.output.Reset()
		if err := env.run("history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "succeeded") {
			t.Errorf("expected run table:\n%s", env.output.String())
		}

		env.output.Reset()
		if err := env.run("history", "--run", "1"); err != nil {
			t.Fatalf("history --run failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Morning Mix") {
			t.Errorf("expected snapshot table:\n%s", env.output.String())
		}
	})

	t.Run("playlist snapshots as JSON", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.SetPlaylist(morningMix())
		if err := env.run("add", "mix"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		for range 2 {
			if err := env.run("update"); err != nil {
				t.Fatalf("update failed: %v", err)
			}
		}

		env.output.Reset()
		if err := env.run("history", "--playlist", "mix", "--json"); err != nil {
			t.Fatalf("history failed: %v", err)
		}

		var snapshots []snapshotView
		if err := json.Unmarshal(env.output.Bytes(), &snapshots); err != nil {
			t.Fatalf("failed to decode snapshots: %v", err)
		}
		if len(snapshots) != 2 {
			t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
		}
		// Most recent first: the second run changed nothing.
		if snapshots[0].Changed || !snapshots[1].Changed || snapshots[1].TrackCount != 2 {
			t.Errorf("unexpected snapshots: %+v", snapshots)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("history", "--run", "9"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.runner.config.Database.Path = ""
		if err := env.run("history"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("creates config, layout and database", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(env.root, "config.toml"))
		tu.AssertDirExists(t, filepath.Join(env.root, "playlists", "plain"))
		tu.AssertDirExists(t, filepath.Join(env.root, "playlists", "cumulative"))
		tu.AssertFileExists(t, filepath.Join(env.root, "history.db"))

		if readme := tu.MustReadFile(t, filepath.Join(env.root, "README.md")); !strings.Contains(readme, "## Playlists") {
			t.Errorf("expected README index heading, got %q", readme)
		}
	})

	t.Run("keeps existing config", func(t *testing.T) {
		env := newTestEnv(t)
		configPath := filepath.Join(env.root, "config.toml")
		tu.MustWriteFile(t, configPath, "# mine\n")

		if err := env.run("setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if got := tu.MustReadFile(t, configPath); got != "# mine\n" {
			t.Errorf("config was overwritten: %q", got)
		}
	})
}
