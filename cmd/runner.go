package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plarchive/internal/archive"
	"github.com/desertthunder/plarchive/internal/formatter"
	"github.com/desertthunder/plarchive/internal/services"
	"github.com/desertthunder/plarchive/internal/shared"
	"github.com/desertthunder/plarchive/internal/vcs"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	fetcher    services.Fetcher
	httpClient *http.Client
	gitRunner  vcs.Runner
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Config and Fetcher are resolved from the command line when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Fetcher    services.Fetcher
	HTTPClient *http.Client
	GitRunner  vcs.Runner
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.GitRunner == nil {
		opts.GitRunner = vcs.ExecRunner
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		fetcher:    opts.Fetcher,
		httpClient: opts.HTTPClient,
		gitRunner:  opts.GitRunner,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		updateCommand, pushCommand, addCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration and sets the log level ahead of every command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}

	if r.config == nil {
		config, err := shared.LoadConfigOrDefault(r.configPath)
		if err != nil {
			return ctx, err
		}
		config.Credentials.Spotify.ApplyEnv(os.LookupEnv)
		r.config = config
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// cfg returns the loaded configuration, falling back to defaults outside of a command.
func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

func (r *Runner) store() *archive.Store {
	return archive.New(r.cfg().Archive, r.logger)
}

func (r *Runner) views() *formatter.Formatter {
	cfg := r.cfg().Archive
	return formatter.New(formatter.NewURLs(cfg.PlaylistsDir, cfg.HistoryURL))
}

func (r *Runner) git() *vcs.Git {
	g := vcs.New(r.cfg().Git, r.cfg().Archive.Root, r.logger)
	g.SetRunner(r.gitRunner)
	return g
}

// spotify returns the configured fetcher, authenticating a new Spotify client when none was injected.
func (r *Runner) spotify(ctx context.Context) (services.Fetcher, error) {
	if r.fetcher != nil {
		return r.fetcher, nil
	}

	cfg := r.cfg()
	if err := cfg.Credentials.Spotify.Validate(); err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(cfg.Credentials.Spotify.Map(), services.SpotifyOptions{
		BaseURL:           cfg.API.BaseURL,
		TokenURL:          cfg.API.TokenURL,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		RetryBudget:       cfg.API.RetryBudget(),
		HTTPClient:        r.httpClient,
		Logger:            shared.WithLogger(r.logger, "service", "spotify"),
	})
	if err != nil {
		return nil, err
	}

	if err := svc.Authenticate(ctx); err != nil {
		return nil, err
	}

	r.fetcher = svc
	return svc, nil
}

// history opens the run history database. It returns nil when history is disabled.
func (r *Runner) history() (*sql.DB, error) {
	db, err := shared.OpenHistory(r.cfg().Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
