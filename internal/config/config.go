// ABOUTME: Configuration loading and parsing for fieldbook
// ABOUTME: Supports YAML or TOML files with env expansion, FIELDBOOK_* overrides and duration parsing

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/2389/fieldbook/internal/auth"
)

// Config represents the complete fieldbook configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Plots     PlotsConfig     `yaml:"plots" toml:"plots"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr" env:"FIELDBOOK_HTTP_ADDR"`

	ShutdownTimeout   time.Duration `yaml:"-" toml:"-"`
	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"FIELDBOOK_SHUTDOWN_TIMEOUT"`
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout" env:"FIELDBOOK_READ_HEADER_TIMEOUT"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" env:"FIELDBOOK_TAILSCALE_ENABLED"`
	Hostname  string `yaml:"hostname" toml:"hostname" env:"FIELDBOOK_TAILSCALE_HOSTNAME"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key" env:"TS_AUTHKEY"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve TLS with a tailnet certificate
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" env:"FIELDBOOK_DB_PATH"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret" env:"FIELDBOOK_JWT_SECRET"`

	// AllowAnonymous lets requests without a token reach plot reads.
	AllowAnonymous bool `yaml:"allow_anonymous" toml:"allow_anonymous" env:"FIELDBOOK_ALLOW_ANONYMOUS"`

	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// RateLimitConfig caps register and login requests per client IP
type RateLimitConfig struct {
	Enabled  bool `yaml:"enabled" toml:"enabled" env:"FIELDBOOK_RATE_LIMIT_ENABLED"`
	Requests int  `yaml:"requests" toml:"requests" env:"FIELDBOOK_RATE_LIMIT_REQUESTS"`

	Window    time.Duration `yaml:"-" toml:"-"`
	WindowRaw string        `yaml:"window" toml:"window" env:"FIELDBOOK_RATE_LIMIT_WINDOW"`
}

// PlotsConfig holds the plot ownership policy
type PlotsConfig struct {
	EnforceOwnership bool `yaml:"enforce_ownership" toml:"enforce_ownership" env:"FIELDBOOK_ENFORCE_OWNERSHIP"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"FIELDBOOK_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"FIELDBOOK_LOG_FORMAT"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"FIELDBOOK_METRICS_ENABLED"`
	Path    string `yaml:"path" toml:"path" env:"FIELDBOOK_METRICS_PATH"`
}

// Default returns a Config with every optional field set. Files and the
// environment are layered on top of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:             "127.0.0.1:8080",
			ShutdownTimeoutRaw:   "10s",
			ReadHeaderTimeoutRaw: "5s",
		},
		Tailscale: TailscaleConfig{
			Hostname: "fieldbook",
		},
		Auth: AuthConfig{
			RateLimit: RateLimitConfig{
				Enabled:   true,
				Requests:  100,
				Window:    15 * time.Minute,
				WindowRaw: "15m",
			},
		},
		Plots: PlotsConfig{
			EnforceOwnership: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// DefaultPath returns the config file location.
// Priority: FIELDBOOK_CONFIG env var > XDG_CONFIG_HOME/fieldbook/config.yaml > ~/.config/fieldbook/config.yaml
func DefaultPath() string {
	if p := os.Getenv("FIELDBOOK_CONFIG"); p != "" {
		return p
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "fieldbook", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then
// FIELDBOOK_* variables override individual fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// FromEnv builds a Config from defaults and FIELDBOOK_* variables alone.
func FromEnv() (*Config, error) {
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// An HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (run 'fieldbook init' to generate one)")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes, got %d", auth.MinSecretLength, len(c.Auth.JWTSecret))
	}

	if rl := c.Auth.RateLimit; rl.Enabled {
		if rl.Requests <= 0 {
			return fmt.Errorf("auth.rate_limit.requests must be positive, got %d", rl.Requests)
		}
		if rl.Window <= 0 {
			return fmt.Errorf("auth.rate_limit.window must be positive")
		}
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

// SlogLevel converts the configured level name.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Server.ReadHeaderTimeoutRaw != "" {
		cfg.Server.ReadHeaderTimeout, err = time.ParseDuration(cfg.Server.ReadHeaderTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing read_header_timeout %q: %w", cfg.Server.ReadHeaderTimeoutRaw, err)
		}
	}

	if cfg.Auth.RateLimit.WindowRaw != "" {
		cfg.Auth.RateLimit.Window, err = time.ParseDuration(cfg.Auth.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.rate_limit.window %q: %w", cfg.Auth.RateLimit.WindowRaw, err)
		}
	}

	return nil
}
