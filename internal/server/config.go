// Package server provides configuration loading for the relay, with defaults
// applied to anything unset or out of range.
package server

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

const (
	defaultHistoryLimit  = 100
	defaultMaxBodyLength = 500
	defaultSendQueueSize = 256
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RELAY_RATE_LIMIT_BURST" envDefault:"5"`
	RefillInterval time.Duration `env:"RELAY_RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the relay configuration, populated from RELAY_* environment
// variables.
type Config struct {
	Addr            string          `env:"RELAY_ADDR" envDefault:":8080"`
	AllowedOrigins  []string        `env:"RELAY_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`
	HistoryLimit    int             `env:"RELAY_HISTORY_LIMIT" envDefault:"100"`
	MaxBodyLength   int             `env:"RELAY_MAX_BODY_LENGTH" envDefault:"500"`
	MaxFrameSize    int64           `env:"RELAY_MAX_FRAME_SIZE" envDefault:"4096"`
	SendQueueSize   int             `env:"RELAY_SEND_QUEUE_SIZE" envDefault:"256"`
	ShutdownTimeout time.Duration   `env:"RELAY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string          `env:"RELAY_LOG_LEVEL" envDefault:"info"`
	RateLimit       RateLimitConfig
}

func defaultConfig() Config {
	return Config{
		Addr:            ":8080",
		AllowedOrigins:  []string{"http://localhost:8080"},
		HistoryLimit:    defaultHistoryLimit,
		MaxBodyLength:   defaultMaxBodyLength,
		MaxFrameSize:    4096,
		SendQueueSize:   defaultSendQueueSize,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return sanitizeConfig(defaultConfig())
}

// NewConfigFromEnv loads configuration from the environment, falling back to
// defaults for anything unset or invalid.
func NewConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	return sanitizeConfig(cfg), nil
}

func sanitizeConfig(cfg Config) Config {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":8080"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.MaxBodyLength <= 0 {
		cfg.MaxBodyLength = defaultMaxBodyLength
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = 4096
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaultSendQueueSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	return cfg
}
