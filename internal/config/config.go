// Package config loads qaflow configuration: built-in defaults, then an
// optional YAML config file, then environment overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is the executor poll interval used when the config
// leaves it unset or unparseable.
const DefaultPollInterval = 30 * time.Second

// Config holds everything the qaflow binaries need
type Config struct {
	Jira     JiraConfig     `yaml:"jira"`
	Results  ResultsConfig  `yaml:"results"`
	Server   ServerConfig   `yaml:"server"`
	AI       AIConfig       `yaml:"ai"`
	Executor ExecutorConfig `yaml:"executor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// JiraConfig configures the tracker client.
// URL, user, token and project are required by the client itself; the
// config layer passes through whatever it finds.
type JiraConfig struct {
	URL               string  `yaml:"url"`
	User              string  `yaml:"user"`
	Token             string  `yaml:"token"`
	Project           string  `yaml:"project"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ResultsConfig configures the local result store
type ResultsConfig struct {
	// File is the JSON store path. Ignored when DBPath is set.
	File string `yaml:"file"`

	// DBPath selects the SQLite store when non-empty
	DBPath string `yaml:"db_path"`

	// LogsDir is where per-case execution logs are appended.
	// Empty disables them.
	LogsDir string `yaml:"logs_dir"`
}

// ServerConfig configures the HTTP API service
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AIConfig configures the AI operator
type AIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ExecutorConfig configures the autonomous execution loop
type ExecutorConfig struct {
	// PollInterval is a duration string ("30s", "2m")
	PollInterval string `yaml:"poll_interval"`
}

// Interval returns the parsed poll interval, falling back to
// DefaultPollInterval when unset.
func (c ExecutorConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Jira: JiraConfig{
			RequestsPerSecond: 5,
		},
		Results: ResultsConfig{
			File:    "test_results.json",
			LogsDir: "logs",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Executor: ExecutorConfig{
			PollInterval: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from the default search path: defaults,
// then qaflow.yaml in the working directory (else ~/.qaflow.yaml), then
// environment overrides.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path
// skips the file layer; a missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file on the search path, or
// empty when none exists
func findConfigFile() string {
	if _, err := os.Stat("qaflow.yaml"); err == nil {
		return "qaflow.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".qaflow.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides
//
// Environment variables:
//   - JIRA_URL, JIRA_USER, JIRA_TOKEN, JIRA_PROJECT: tracker connection
//   - QAFLOW_JIRA_RPS: tracker request rate limit (default: 5)
//   - RESULTS_FILE: JSON result store path (default: test_results.json)
//   - QAFLOW_RESULTS_DB: SQLite result store path (empty keeps the JSON store)
//   - LOGS_DIR: per-case execution log directory (default: logs)
//   - QAFLOW_ADDR: HTTP listen address (default: :8000)
//   - ANTHROPIC_API_KEY, QAFLOW_MODEL: AI operator
//   - QAFLOW_POLL_INTERVAL: executor poll interval (default: 30s)
//   - QAFLOW_LOG_LEVEL: log level (default: info)
func (c *Config) applyEnvOverrides() error {
	parseEnvString("JIRA_URL", &c.Jira.URL)
	parseEnvString("JIRA_USER", &c.Jira.User)
	parseEnvString("JIRA_TOKEN", &c.Jira.Token)
	parseEnvString("JIRA_PROJECT", &c.Jira.Project)
	if err := parseEnvFloat("QAFLOW_JIRA_RPS", &c.Jira.RequestsPerSecond); err != nil {
		return err
	}
	parseEnvString("RESULTS_FILE", &c.Results.File)
	parseEnvString("QAFLOW_RESULTS_DB", &c.Results.DBPath)
	parseEnvString("LOGS_DIR", &c.Results.LogsDir)
	parseEnvString("QAFLOW_ADDR", &c.Server.Addr)
	parseEnvString("ANTHROPIC_API_KEY", &c.AI.APIKey)
	parseEnvString("QAFLOW_MODEL", &c.AI.Model)
	parseEnvString("QAFLOW_POLL_INTERVAL", &c.Executor.PollInterval)
	parseEnvString("QAFLOW_LOG_LEVEL", &c.Logging.Level)
	return nil
}

// Validate checks if the configuration has valid values. Collaborator
// requirements (Jira credentials, the API key) are enforced by the
// collaborators at construction, not here.
func (c *Config) Validate() error {
	if c.Results.File == "" && c.Results.DBPath == "" {
		return fmt.Errorf("results store is unset (need results.file or results.db_path)")
	}

	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			return fmt.Errorf("invalid server address %q: %w", c.Server.Addr, err)
		}
	}

	if c.Executor.PollInterval != "" {
		d, err := time.ParseDuration(c.Executor.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll interval %q: %w", c.Executor.PollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive (got %s)", d)
		}
	}

	if c.Jira.RequestsPerSecond < 0 {
		return fmt.Errorf("jira requests per second cannot be negative (got %v)", c.Jira.RequestsPerSecond)
	}

	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
