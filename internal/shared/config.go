package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Downloader  DownloaderConfig `toml:"downloader"`
	Fallback    FallbackConfig   `toml:"fallback"`
	Retention   RetentionConfig  `toml:"retention"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	PublicURL string  `toml:"public_url"`
	RateLimit float64 `toml:"rate_limit"` // requests per second per client
	RateBurst int     `toml:"rate_burst"`

	// TrustProxy honours the right-most X-Forwarded-For hop. Enable it only behind a
	// reverse proxy that appends to the header.
	TrustProxy bool `toml:"trust_proxy"`
}

// DownloaderConfig controls how the external downloader is located and invoked.
type DownloaderConfig struct {
	OutputDir      string     `toml:"output_dir"`
	LocalPath      string     `toml:"local_path"`
	Candidates     [][]string `toml:"candidates"`
	Reprobe        bool       `toml:"reprobe"`
	ProbeTimeout   Duration   `toml:"probe_timeout"`
	InfoTimeout    Duration   `toml:"info_timeout"`
	AttemptTimeout Duration   `toml:"attempt_timeout"`
	RetryBackoff   Duration   `toml:"retry_backoff"`
	MaxHeight      int        `toml:"max_height"`
	UserAgent      string     `toml:"user_agent"`
	Accept         string     `toml:"accept"`
	HeadersFile    string     `toml:"headers_file"`
}

// FallbackConfig lists the secondary API instances queried on bot-detection failures.
type FallbackConfig struct {
	Enabled   bool     `toml:"enabled"`
	Instances []string `toml:"instances"`
	Timeout   Duration `toml:"timeout"`
	MaxHeight int      `toml:"max_height"`
}

// RetentionConfig controls the sweep of stale downloads.
type RetentionConfig struct {
	MaxAge   Duration `toml:"max_age"`
	Interval Duration `toml:"interval"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsDevelopment reports whether the downloader should skip probing.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides selected values from the process environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if env := getenv("VIDPROXY_ENV"); env != "" {
		c.Environment = env
	}
	if port := getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dir := getenv("VIDPROXY_OUTPUT_DIR"); dir != "" {
		c.Downloader.OutputDir = dir
	}
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("%w: unknown environment %q", ErrInvalidConfig, c.Environment)
	}
	if c.Downloader.OutputDir == "" {
		return fmt.Errorf("%w: downloader.output_dir is required", ErrInvalidConfig)
	}
	if !c.IsDevelopment() && len(c.Downloader.Candidates) == 0 {
		return fmt.Errorf("%w: downloader.candidates must not be empty", ErrInvalidConfig)
	}
	if c.Downloader.MaxHeight <= 0 {
		return fmt.Errorf("%w: downloader.max_height must be positive", ErrInvalidConfig)
	}
	if c.Retention.MaxAge.Duration <= 0 {
		return fmt.Errorf("%w: retention.max_age must be positive", ErrInvalidConfig)
	}
	return nil
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
