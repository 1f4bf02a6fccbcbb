// Package config loads the harness configuration file. Command-line flags override what is
// loaded here.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Repo    RepoConfig    `yaml:"repo"`
	Suite   string        `yaml:"suite"`
	Server  ServerConfig  `yaml:"server"`
	Probe   ProbeConfig   `yaml:"probe"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RepoConfig describes the working copy of the server under test. An empty URL and Dir
// means no checkout at all.
type RepoConfig struct {
	URL        string `yaml:"url"`
	Dir        string `yaml:"dir"`
	MainBranch string `yaml:"main_branch"`
	Prepare    *bool  `yaml:"prepare"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	StartupGrace time.Duration `yaml:"startup_grace"`
	HardDeadline time.Duration `yaml:"hard_deadline"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
}

type ProbeConfig struct {
	Verbose          bool `yaml:"verbose"`
	OutputLimitBytes int  `yaml:"output_limit_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	File string `yaml:"file"`
}

func Defaults() *Config {
	return &Config{
		Repo: RepoConfig{
			Dir:        "rhttp_repo",
			MainBranch: "main",
		},
		Server: ServerConfig{
			Host:         "localhost",
			Port:         4321,
			StartupGrace: 500 * time.Millisecond,
			HardDeadline: 5 * time.Second,
			StopTimeout:  2 * time.Second,
		},
		Probe: ProbeConfig{
			OutputLimitBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. Environment variables in the file
// are expanded first.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ShouldPrepare reports whether the working copy should be cloned or updated before the
// run. It defaults to true whenever a repository URL is configured.
func (c *Config) ShouldPrepare() bool {
	if c.Repo.Prepare != nil {
		return *c.Repo.Prepare
	}
	return c.Repo.URL != ""
}

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if c.Probe.OutputLimitBytes <= 0 {
		return fmt.Errorf("probe.output_limit_bytes must be positive")
	}
	if err := validateLogFormat(c.Logging.Format); err != nil {
		return err
	}
	return validateLogLevel(c.Logging.Level)
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if s.StartupGrace < 0 {
		return fmt.Errorf("server.startup_grace must not be negative")
	}
	if s.HardDeadline <= 0 {
		return fmt.Errorf("server.hard_deadline must be positive")
	}
	if s.StartupGrace >= s.HardDeadline {
		return fmt.Errorf("server.startup_grace must be shorter than server.hard_deadline")
	}
	if s.StopTimeout <= 0 {
		return fmt.Errorf("server.stop_timeout must be positive")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
}

func validateLogFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json", "logfmt":
		return nil
	default:
		return fmt.Errorf("logging.format must be one of: text, json, logfmt")
	}
}
