package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultServerURL        = "http://localhost:8000"
	DefaultReconnectDelay   = 3000 * time.Millisecond
	DefaultFailureGrace     = 10 * time.Second
	DefaultSaveDebounce     = 2 * time.Second
	DefaultRequestTimeout   = 15 * time.Second
	DefaultMaxRuntime       = 10 * time.Second
	DefaultFallbackScope    = "default"
	DefaultDevServerBind    = "127.0.0.1:8000"
)

// Config represents the complete client configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
	StateDir  string          `yaml:"state_dir"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// ServerConfig describes the remote execution backend
type ServerConfig struct {
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SessionConfig tunes the terminal channel lifecycle
type SessionConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	FailureGrace   time.Duration `yaml:"failure_grace"`
	FallbackScope  string        `yaml:"fallback_scope"`
	MaxRuntime     time.Duration `yaml:"max_runtime"`
}

// WorkspaceConfig tunes file mirroring
type WorkspaceConfig struct {
	SaveDebounce time.Duration `yaml:"save_debounce"`
}

// LoggingConfig controls the observability sink
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DevServerConfig configures the bundled local backend
type DevServerConfig struct {
	Bind      string `yaml:"bind"`
	JWTSecret string `yaml:"jwt_secret"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            DefaultServerURL,
			RequestTimeout: DefaultRequestTimeout,
		},
		Session: SessionConfig{
			ReconnectDelay: DefaultReconnectDelay,
			FailureGrace:   DefaultFailureGrace,
			FallbackScope:  DefaultFallbackScope,
			MaxRuntime:     DefaultMaxRuntime,
		},
		Workspace: WorkspaceConfig{
			SaveDebounce: DefaultSaveDebounce,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		StateDir: defaultStateDir(),
		DevServer: DevServerConfig{
			Bind: DefaultDevServerBind,
		},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codecanvas"
	}
	return filepath.Join(home, ".codecanvas")
}

// Load builds a config from defaults, an optional YAML file, and environment
// overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = filepath.Join(cfg.StateDir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var override Config
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		merge(cfg, &override)
	case os.IsNotExist(err):
		// No config file is fine; defaults apply.
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func merge(base, override *Config) {
	if override == nil {
		return
	}
	if override.Server.URL != "" {
		base.Server.URL = override.Server.URL
	}
	if override.Server.RequestTimeout != 0 {
		base.Server.RequestTimeout = override.Server.RequestTimeout
	}
	if override.Session.ReconnectDelay != 0 {
		base.Session.ReconnectDelay = override.Session.ReconnectDelay
	}
	if override.Session.FailureGrace != 0 {
		base.Session.FailureGrace = override.Session.FailureGrace
	}
	if override.Session.FallbackScope != "" {
		base.Session.FallbackScope = override.Session.FallbackScope
	}
	if override.Session.MaxRuntime != 0 {
		base.Session.MaxRuntime = override.Session.MaxRuntime
	}
	if override.Workspace.SaveDebounce != 0 {
		base.Workspace.SaveDebounce = override.Workspace.SaveDebounce
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.StateDir != "" {
		base.StateDir = override.StateDir
	}
	if override.DevServer.Bind != "" {
		base.DevServer.Bind = override.DevServer.Bind
	}
	if override.DevServer.JWTSecret != "" {
		base.DevServer.JWTSecret = override.DevServer.JWTSecret
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CANVAS_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("CANVAS_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("CANVAS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CANVAS_RECONNECT_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Session.ReconnectDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("CANVAS_DEVSERVER_BIND"); v != "" {
		cfg.DevServer.Bind = v
	}
	if v := os.Getenv("CANVAS_DEVSERVER_JWT_SECRET"); v != "" {
		cfg.DevServer.JWTSecret = v
	}
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", c.Server.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server url must be http or https, got %q", c.Server.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("server url %q has no host", c.Server.URL)
	}
	if c.Session.ReconnectDelay <= 0 {
		return fmt.Errorf("session reconnect_delay must be positive")
	}
	if c.Session.FallbackScope == "" {
		return fmt.Errorf("session fallback_scope must not be empty")
	}
	return nil
}
