// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/skymaintain/service-layer/internal/app/policy"
)

// Server holds the HTTP listener settings.
type Server struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `env:"SERVER_PORT,default=8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Database selects and tunes the persistence backend. Driver "memory" runs
// without external dependencies; "postgres" requires a DSN.
type Database struct {
	Driver       string `env:"DATABASE_DRIVER,default=memory"`
	DSN          string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Config is the full service configuration.
type Config struct {
	Server   Server
	Database Database
	Logging  Logging

	// StampKey signs and verifies advisory policy stamps. It must match the
	// advisory pipeline's key.
	StampKey string `env:"ADVISORY_STAMP_KEY,required"`
	// IdentityJWTKey enables bearer-token identity resolution when set.
	IdentityJWTKey string `env:"AUTH_JWT_KEY"`
	// ThresholdsPath points at a YAML file overriding the compiled-in rule
	// thresholds.
	ThresholdsPath string `env:"RULE_THRESHOLDS_PATH"`
}

// Load decodes configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	if cfg.Database.Driver != "memory" && cfg.Database.Driver != "postgres" {
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	return cfg, nil
}

// Thresholds resolves the rule-engine thresholds, loading the override file
// when one is configured.
func (c Config) Thresholds() (policy.Thresholds, error) {
	if c.ThresholdsPath == "" {
		return policy.DefaultThresholds(), nil
	}
	return policy.LoadThresholds(c.ThresholdsPath)
}
