// Package config loads the service configuration from YAML and environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root service configuration. It is loaded once at startup and
// never mutated afterwards.
//
// Sources, highest priority first:
//  1. explicit path (--config flag);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// Environment variables are always applied on top of the file.
type Config struct {
	Env  string     `yaml:"env" env:"ENV" env-default:"local"`
	HTTP HTTPConfig `yaml:"http"`
	GRPC GRPCConfig `yaml:"grpc"`
	Auth AuthConfig `yaml:"auth"`
	DB   DBConfig   `yaml:"db"`
}

type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	// BaseURL overrides the issuer derived from incoming requests.
	BaseURL           string        `yaml:"base_url" env:"HTTP_BASE_URL"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"15s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// RateLimit applies per client IP to /auth endpoints. Zero disables it.
	RateLimit float64 `yaml:"rate_limit" env:"HTTP_RATE_LIMIT" env-default:"5"`
	RateBurst int     `yaml:"rate_burst" env:"HTTP_RATE_BURST" env-default:"10"`
	// TrustForwardedFor keys the rate limit on X-Forwarded-For. Enable only behind a proxy.
	TrustForwardedFor bool `yaml:"trust_forwarded_for" env:"HTTP_TRUST_FORWARDED_FOR" env-default:"false"`
}

type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"9090"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr returns host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig holds token settings. The refresh lifetime is derived from the access TTL.
type AuthConfig struct {
	Secret string `yaml:"secret" env:"AUTH_SECRET" env-required:"true"`
	// AccessTokenTTL is expressed in seconds.
	AccessTokenTTL int64  `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-required:"true"`
	Issuer         string `yaml:"issuer" env:"AUTH_ISSUER"`
	BcryptCost     int    `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"10"`
}

// AccessTTL converts AccessTokenTTL to a duration.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTL) * time.Second
}

// DBConfig configures PostgreSQL. An empty DSN selects the in-memory user store.
type DBConfig struct {
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

var (
	ErrMissingSecret = errors.New("config: auth.secret must not be empty")
	ErrInvalidTTL    = errors.New("config: auth.access_token_ttl must be a positive number of seconds")
)

// Validate checks the settings the token subsystem cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return ErrMissingSecret
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load resolves the configuration source by priority and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			path = "local.yaml"
		}
	}

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
	}
	// ReadConfig already overlays the environment on top of the file.
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return &cfg, nil
}
