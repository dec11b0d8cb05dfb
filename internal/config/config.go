package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the global txtlog configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Commit  CommitConfig  `yaml:"commit"`
	Server  ServerConfig  `yaml:"server"`
	Encoder EncoderConfig `yaml:"encoder"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig locates the log file.
type LogConfig struct {
	Path string `yaml:"path"`
	// Filter is an optional Starlark script defining filter(kind, text).
	Filter string `yaml:"filter"`
}

// CommitConfig controls the commit publisher.
type CommitConfig struct {
	// Backend is "exec" (shell out to git) or "repo" (in-process go-git).
	Backend     string `yaml:"backend"`
	Binary      string `yaml:"binary"`
	Dir         string `yaml:"dir"`
	Remote      string `yaml:"remote"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	Username    string `yaml:"username"`
	// Token is never read from the config file; see PushToken.
	Token string `yaml:"-"`
	Push  bool   `yaml:"push"`
	// Schedule enables periodic auto-commit in serve mode, e.g. "@every 1h".
	Schedule string `yaml:"schedule"`
}

// ServerConfig controls the HTTP boundary.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	StaticDir       string        `yaml:"static_dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EncoderConfig controls the secret encoder.
type EncoderConfig struct {
	EnvFile string `yaml:"env_file"`
	Key     string `yaml:"key"`
}

// LoggingConfig controls diagnostic logging (not the txt log itself).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

const (
	BackendExec = "exec"
	BackendRepo = "repo"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Path: filepath.Join("logs", "txt.log"),
		},
		Commit: CommitConfig{
			Backend: BackendExec,
			Binary:  "git",
			Remote:  "origin",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            5050,
			StaticDir:       ".",
			ShutdownTimeout: 10 * time.Second,
		},
		Encoder: EncoderConfig{
			EnvFile: filepath.Join("server", ".env"),
			Key:     "GITHUB_TOKEN_B64",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "txtlog",
		},
	}
}

// Load reads the config from the standard location
// (~/.config/txtlog/config.yaml). If the file doesn't exist, returns the
// default config.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Log.Path = expandHome(cfg.Log.Path)
	cfg.Log.Filter = expandHome(cfg.Log.Filter)
	cfg.Commit.Dir = expandHome(cfg.Commit.Dir)
	cfg.Server.StaticDir = expandHome(cfg.Server.StaticDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. PORT selects the HTTP
// port.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return c.Validate()
}

// PushToken returns Commit.Token if set, else the base64-decoded value of
// the Encoder.Key environment variable (GITHUB_TOKEN_B64 by default). Only
// the repo backend needs it, so it is resolved on demand.
func (c *Config) PushToken() (string, error) {
	if c.Commit.Token != "" {
		return c.Commit.Token, nil
	}
	v := strings.TrimSpace(os.Getenv(c.Encoder.Key))
	if v == "" {
		return "", nil
	}
	token, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.Encoder.Key, err)
	}
	return string(token), nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Commit.Backend {
	case BackendExec, BackendRepo:
	default:
		return fmt.Errorf("commit.backend: unknown backend %q", c.Commit.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Log.Path == "" {
		return fmt.Errorf("log.path: must not be empty")
	}
	return nil
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "txtlog", "config.yaml")
}

func expandHome(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, p[1:])
}
