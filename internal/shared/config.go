package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRunNumber           = "GITHUB_RUN_NUMBER"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Archive     ArchiveConfig     `toml:"archive"`
	API         APIConfig         `toml:"api"`
	Git         GitConfig         `toml:"git"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// ArchiveConfig describes where the archive lives and how it is built.
type ArchiveConfig struct {
	Root         string `toml:"root"`
	PlaylistsDir string `toml:"playlists_dir"`
	Readme       string `toml:"readme"`
	HistoryURL   string `toml:"history_url"`
	Workers      int    `toml:"workers"`
}

// APIConfig contains Spotify Web API endpoints and request limits.
type APIConfig struct {
	BaseURL            string  `toml:"base_url"`
	TokenURL           string  `toml:"token_url"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	RetryBudgetSeconds int     `toml:"retry_budget_seconds"`
}

// GitConfig contains settings for committing and pushing archive updates.
type GitConfig struct {
	UserName     string `toml:"user_name"`
	UserEmail    string `toml:"user_email"`
	Remote       string `toml:"remote"`
	RemoteURL    string `toml:"remote_url"`
	Branch       string `toml:"branch"`
	CommitPrefix string `toml:"commit_prefix"`
}

// DatabaseConfig contains run history database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// RetryBudget returns the 429 retry budget as a [time.Duration].
func (c APIConfig) RetryBudget() time.Duration {
	return time.Duration(c.RetryBudgetSeconds) * time.Second
}

// Map returns the credentials in the form expected by services.NewSpotifyService.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	}
}

// ApplyEnv overrides the credentials with non-empty values found through lookup (usually [os.LookupEnv]).
func (c *SpotifyConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSpotifyClientID); ok && v != "" {
		c.ClientID = v
	}
	if v, ok := lookup(EnvSpotifyClientSecret); ok && v != "" {
		c.ClientSecret = v
	}
}

// Validate reports [ErrMissingCredentials] when either credential is empty.
func (c SpotifyConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: set %s and %s", ErrMissingCredentials, EnvSpotifyClientID, EnvSpotifyClientSecret)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from a dotenv file into the process environment.
//
// A missing file is not an error. Variables already set are not overridden.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
