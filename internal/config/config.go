// Package config handles the workspace layout, the XDG configuration
// directory, and the allowlist configuration file.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName is the application directory name.
	AppName = "donelog"

	// ConfigFile is the allowlist configuration filename in the workspace.
	ConfigFile = "config.json"

	// ConfigFileYAML is accepted when ConfigFile does not exist.
	ConfigFileYAML = "config.yaml"

	// StateFile stores the last committed run window.
	StateFile = "state.json"

	// EventsFile is the append-only event store.
	EventsFile = "data/events.jsonl"

	// TaskCacheFile is the persisted task metadata cache.
	TaskCacheFile = "data/task_cache.json"

	// LogFile is the rendered weekly log.
	LogFile = "activity/completed.md"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored Google OAuth token filename.
	TokenFile = "token.json"

	// TokenEnv names the environment variable holding the Todoist API token.
	TokenEnv = "TODOIST_API_TOKEN"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the workspace directory holding config, state, data and the log.
	Dir string

	// ConfigDir holds per-user credentials (Google OAuth client and token).
	ConfigDir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// New creates a new Config.
// An empty workDir means the current directory; an empty configDir means
// XDG_CONFIG_HOME/donelog or $HOME/.config/donelog.
func New(workDir, configDir string) (*Config, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return &Config{Dir: workDir, ConfigDir: configDir}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the allowlist configuration file path.
// config.json wins; config.yaml is used only when it exists and config.json does not.
func (c *Config) ConfigPath() string {
	jsonPath := filepath.Join(c.Dir, ConfigFile)
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}
	yamlPath := filepath.Join(c.Dir, ConfigFileYAML)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return jsonPath
}

// StatePath returns the run state file path.
func (c *Config) StatePath() string { return filepath.Join(c.Dir, StateFile) }

// EventsPath returns the event store path.
func (c *Config) EventsPath() string { return filepath.Join(c.Dir, EventsFile) }

// TaskCachePath returns the task metadata cache path.
func (c *Config) TaskCachePath() string { return filepath.Join(c.Dir, TaskCacheFile) }

// LogPath returns the rendered log path.
func (c *Config) LogPath() string { return filepath.Join(c.Dir, LogFile) }

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.ConfigDir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.ConfigDir, TokenFile)
}

// EnsureConfigDir creates the credentials directory with mode 0700.
func (c *Config) EnsureConfigDir() error {
	return os.MkdirAll(c.ConfigDir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// APIToken returns the trimmed Todoist token from the environment.
func APIToken() string {
	return strings.TrimSpace(os.Getenv(TokenEnv))
}
