// Package config loads environment backed configuration for the service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Version is stamped at build time through -ldflags.
var Version = "dev"

// Global singleton so infrastructure jobs can read current settings.
var globalConfig *Config

// Config holds all environment backed configuration for the history API.
type Config struct {
	// HTTP Server
	HTTPPort    int           `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int           `env:"METRICS_PORT" envDefault:"9091"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// PostgreSQL
	DatabaseURL     string `env:"DATABASE_URL,notEmpty"`
	DatabaseReadURL string `env:"DATABASE_READ_URL"`
	AutoMigrate     bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Auth
	AuthTokenSecret string        `env:"AUTH_TOKEN_SECRET,notEmpty"`
	AuthIssuer      string        `env:"AUTH_ISSUER" envDefault:"chathistory"`
	AuthAudience    string        `env:"AUTH_AUDIENCE"`
	AuthClockSkew   time.Duration `env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// Token count reconciliation
	TokenReconcileEnabled         bool `env:"TOKEN_RECONCILE_ENABLED" envDefault:"true"`
	TokenReconcileIntervalMinutes int  `env:"TOKEN_RECONCILE_INTERVAL_MINUTES" envDefault:"15"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"history-api"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"chathistory"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if len(cfg.AuthTokenSecret) < 32 {
		return nil, errors.New("AUTH_TOKEN_SECRET must be at least 32 bytes")
	}
	if cfg.TokenReconcileIntervalMinutes <= 0 {
		return nil, errors.New("TOKEN_RECONCILE_INTERVAL_MINUTES must be positive")
	}

	globalConfig = cfg
	return cfg, nil
}

// GetGlobal returns the last successfully loaded configuration, or nil.
func GetGlobal() *Config {
	return globalConfig
}
