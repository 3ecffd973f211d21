package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LocalConfigName is the per-project config file searched for in the
// working directory and its parents
const LocalConfigName = ".inbox-orch.toml"

// Config holds all application configuration
type Config struct {
	Agent         AgentConfig         `toml:"agent"`
	Run           RunConfig           `toml:"run"`
	Display       DisplayConfig       `toml:"display"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
	Schedule      ScheduleConfig      `toml:"schedule"`
	Archive       ArchiveConfig       `toml:"archive"`
}

// AgentConfig holds agent platform settings
type AgentConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	AgentID        string `toml:"agent_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the invocation timeout as a duration
func (a AgentConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// RunConfig holds display pacing for delegation runs
type RunConfig struct {
	PhaseIntervalSeconds  int `toml:"phase_interval_seconds"`
	CompleteLingerSeconds int `toml:"complete_linger_seconds"`
}

// PhaseInterval returns the per-phase display interval as a duration
func (r RunConfig) PhaseInterval() time.Duration {
	if r.PhaseIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.PhaseIntervalSeconds) * time.Second
}

// CompleteLinger returns how long the complete phase stays visible
func (r RunConfig) CompleteLinger() time.Duration {
	if r.CompleteLingerSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(r.CompleteLingerSeconds) * time.Second
}

// DisplayConfig holds dashboard display settings
type DisplayConfig struct {
	SampleData bool `toml:"sample_data"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds web dashboard settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Addr returns the listen address for the web server
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// ScheduleConfig holds unattended run scheduling
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// ArchiveConfig holds run archive settings
type ArchiveConfig struct {
	Enabled      bool   `toml:"enabled"`
	DatabasePath string `toml:"database_path"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			AgentID:        "email-delegation-orchestrator",
			TimeoutSeconds: 90,
		},
		Run: RunConfig{
			PhaseIntervalSeconds:  2,
			CompleteLingerSeconds: 3,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Port: 8484,
			Host: "127.0.0.1",
		},
		Schedule: ScheduleConfig{
			Cron: "0 8 * * 1-5",
		},
		Archive: ArchiveConfig{
			DatabasePath: filepath.Join(home, ".inbox-orch", "runs.db"),
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.Archive.DatabasePath = ExpandPath(cfg.Archive.DatabasePath)

	return cfg, nil
}

// Save writes the configuration to a TOML file, creating parent directories
// as needed
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FindLocalConfig walks up from the working directory looking for a
// .inbox-orch.toml and returns its path, or "" when none exists
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadWithLocalFallback loads the explicit path when given, otherwise a
// project-local config if one exists, otherwise the user config. The second
// return value is the path that was used.
func LoadWithLocalFallback(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = FindLocalConfig()
	}
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "inbox-orch", "config.toml")
}
