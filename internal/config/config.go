// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package config

import (
	"fmt"
	"time"

	"github.com/ayasato/oneiro/internal/dream"
	"github.com/ayasato/oneiro/internal/validation"
)

// Config is the root application configuration. Values are loaded in
// layers: built-in defaults, then an optional YAML file, then environment
// variables. Field tags use json so the engine tuning section can reuse
// the engine's own config struct directly.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Library LibraryConfig `json:"library"`
	Lookup  LookupConfig  `json:"lookup"`
	Log     LogConfig     `json:"log"`

	// Engine is the personalization tuning section, passed through to
	// the engine verbatim.
	Engine dream.Config `json:"engine"`

	// UserID is the single local user all profile operations target when
	// a request does not name one.
	UserID string `json:"user_id" validate:"required"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string `json:"cors_origins"`

	// RateLimitPerMinute caps requests per client IP; zero disables.
	RateLimitPerMinute int `json:"rate_limit_per_minute" validate:"min=0"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig configures the embedded key-value store.
type StorageConfig struct {
	// Dir is the on-disk database directory. Empty runs in-memory, which
	// loses all profiles on restart.
	Dir string `json:"dir"`

	GCInterval     time.Duration `json:"gc_interval"`
	GCDiscardRatio float64       `json:"gc_discard_ratio" validate:"gte=0,lte=1"`
}

// LibraryConfig locates the local media library file that backs metadata
// lookups, watch history and the explicit feedback export.
type LibraryConfig struct {
	// Path is the library JSON file. A missing file serves an empty
	// library until the file appears.
	Path string `json:"path"`
}

// LookupConfig tunes the guard around the media metadata source.
type LookupConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second" validate:"gt=0"`
	Burst             int           `json:"burst" validate:"min=1"`
	FailureThreshold  uint32        `json:"failure_threshold" validate:"min=1"`
	BreakerTimeout    time.Duration `json:"breaker_timeout"`
	BreakerInterval   time.Duration `json:"breaker_interval"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level" validate:"oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `json:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               7870,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    20 * time.Second,
			CORSOrigins:        nil,
			RateLimitPerMinute: 120,
		},
		Storage: StorageConfig{
			Dir:            "/data/oneiro",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Library: LibraryConfig{
			Path: "/data/oneiro/library.json",
		},
		Lookup: LookupConfig{
			RequestsPerSecond: 1.0,
			Burst:             5,
			FailureThreshold:  5,
			BreakerTimeout:    30 * time.Second,
			BreakerInterval:   60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: *dream.DefaultConfig(),
		UserID: "default",
	}
}

// Validate checks the whole configuration, including the engine section.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("config: engine: %w", err)
	}
	return nil
}
