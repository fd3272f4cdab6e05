// Package config loads mealtrack configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Store       StoreConfig       `koanf:"store"`
	Recognition RecognitionConfig `koanf:"recognition"`
	Resolver    ResolverConfig    `koanf:"resolver"`
	Log         LogConfig         `koanf:"log"`
	OIDC        OIDCConfig        `koanf:"oidc"`
}

// ServerConfig configures the HTTP listener and upload handling.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	WebDir          string        `koanf:"web_dir"`
	UploadDir       string        `koanf:"upload_dir"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// TrustForwardAuth accepts the Remote-User header from an authenticating
	// reverse proxy. Leave off unless the proxy strips the header from
	// client requests.
	TrustForwardAuth bool `koanf:"trust_forward_auth"`
	// DisableAuth serves every request as DevUser. Development only.
	DisableAuth bool   `koanf:"disable_auth"`
	DevUser     string `koanf:"dev_user"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is one of sqlite, postgres or memory.
	Driver string `koanf:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `koanf:"dsn"`
}

// RecognitionConfig describes the external recognition command.
type RecognitionConfig struct {
	Command        string        `koanf:"command"`
	Args           []string      `koanf:"args"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxConcurrent  int           `koanf:"max_concurrent"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
}

// ResolverConfig tunes catalog lookups.
type ResolverConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OIDCConfig enables single sign-on when Issuer is set.
type OIDCConfig struct {
	Issuer       string `koanf:"issuer"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// Enabled reports whether SSO is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.WebDir == "" {
		cfg.Server.WebDir = "web"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.DevUser == "" {
		cfg.Server.DevUser = "dev"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "data/mealtrack.db"
	}
	if cfg.Recognition.Timeout == 0 {
		cfg.Recognition.Timeout = 60 * time.Second
	}
	if cfg.Recognition.MaxConcurrent == 0 {
		cfg.Recognition.MaxConcurrent = 2
	}
	if cfg.Recognition.MaxOutputBytes == 0 {
		cfg.Recognition.MaxOutputBytes = 1 << 20
	}
	if cfg.Resolver.Concurrency == 0 {
		cfg.Resolver.Concurrency = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite, postgres or memory, got %q", c.Store.Driver))
	}

	if strings.TrimSpace(c.Recognition.Command) == "" {
		errs = append(errs, errors.New("recognition.command is required"))
	}
	if c.Recognition.Timeout < 0 {
		errs = append(errs, errors.New("recognition.timeout must not be negative"))
	}
	if c.Recognition.MaxConcurrent < 0 {
		errs = append(errs, errors.New("recognition.max_concurrent must not be negative"))
	}
	if c.Recognition.MaxOutputBytes < 0 {
		errs = append(errs, errors.New("recognition.max_output_bytes must not be negative"))
	}
	if c.Resolver.Concurrency < 0 {
		errs = append(errs, errors.New("resolver.concurrency must not be negative"))
	}
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must not be negative"))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		errs = append(errs, errors.New("oidc.client_id and oidc.redirect_url are required when oidc.issuer is set"))
	}

	return errors.Join(errs...)
}
