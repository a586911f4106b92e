package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Content   ContentConfig   `yaml:"content"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds loopback listener configuration. Port 0 selects an
// ephemeral port; the resolved address is captured once at startup.
type ServerConfig struct {
	Host     string `envconfig:"WEBPANE_HOST" default:"127.0.0.1" yaml:"host"`
	Port     int    `envconfig:"WEBPANE_PORT" default:"0" yaml:"port"`
	MaxConns int    `envconfig:"WEBPANE_MAX_CONNS" default:"64" yaml:"max_conns"`
}

// ContentConfig holds content provider configuration.
type ContentConfig struct {
	// MaxFileBytes caps a single static file read; exceeding it is a 500,
	// not a panic.
	MaxFileBytes   int64    `envconfig:"WEBPANE_MAX_FILE_BYTES" default:"33554432" yaml:"max_file_bytes"`
	AllowedOrigins []string `envconfig:"WEBPANE_ALLOWED_ORIGINS" yaml:"allowed_origins"`
	NotFoundBody   string   `envconfig:"WEBPANE_NOT_FOUND_BODY" yaml:"not_found_body"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"WEBPANE_LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"WEBPANE_LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds listener rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"WEBPANE_RATE_LIMIT_RPS" default:"200" yaml:"requests_per_second"`
	Burst             int  `envconfig:"WEBPANE_RATE_LIMIT_BURST" default:"400" yaml:"burst"`
	Enabled           bool `envconfig:"WEBPANE_RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then overlays a YAML
// file on top. Values present in the file always win.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     0,
			MaxConns: 64,
		},
		Content: ContentConfig{
			MaxFileBytes: 32 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 200,
			Burst:             400,
			Enabled:           true,
		},
	}
}
