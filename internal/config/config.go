// Package config loads the unprotectd service configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Resolver presets.
const (
	PresetCompatible = "compatible"
	PresetDirect     = "direct"
	PresetCloudflare = "cloudflare"
)

// minSessionSecretLen is the shortest HS256 key accepted.
const minSessionSecretLen = 32

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Session  SessionConfig
	Admin    AdminConfig
	Resolver ResolverConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StorageConfig selects and configures the settings store.
type StorageConfig struct {
	Backend  string        `env:"STORAGE_BACKEND" envDefault:"sql"`
	Driver   string        `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN      string        `env:"DB_DSN" envDefault:"data/unprotect.db"`
	CacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"30s"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX"`
}

// SessionConfig holds logged-in session verification settings. An empty
// secret disables session checks: every visitor is treated as logged out.
type SessionConfig struct {
	Secret     string        `env:"SESSION_SECRET"`
	CookieName string        `env:"SESSION_COOKIE" envDefault:"unprotect_session"`
	Issuer     string        `env:"SESSION_ISSUER" envDefault:"unprotect"`
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// AdminConfig holds admin API settings. An empty token disables the admin
// routes.
type AdminConfig struct {
	Token string `env:"ADMIN_TOKEN"`
}

// ResolverConfig maps onto unprotect resolver options.
type ResolverConfig struct {
	Preset         string   `env:"RESOLVER_PRESET" envDefault:"compatible"`
	HeaderPriority []string `env:"RESOLVER_HEADER_PRIORITY" envSeparator:","`
	ParseForwarded bool     `env:"RESOLVER_PARSE_FORWARDED" envDefault:"false"`
	AllowPrivate   bool     `env:"RESOLVER_ALLOW_PRIVATE" envDefault:"false"`
	AllowReserved  []string `env:"RESOLVER_ALLOW_RESERVED" envSeparator:","`
	MaxChainLength int      `env:"RESOLVER_MAX_CHAIN_LENGTH" envDefault:"100"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// LoadDotenv loads variables from the given files into the process
// environment without overriding existing ones. Missing files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom loads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name string
		v    any
	}{
		{"server", &cfg.Server},
		{"storage", &cfg.Storage},
		{"redis", &cfg.Redis},
		{"session", &cfg.Session},
		{"admin", &cfg.Admin},
		{"resolver", &cfg.Resolver},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.v, opts); err != nil {
			return nil, fmt.Errorf("parsing %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionsEnabled reports whether session tokens are verified.
func (c *SessionConfig) SessionsEnabled() bool {
	return c.Secret != ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Storage.Backend {
	case BackendSQL:
		switch c.Storage.Driver {
		case "sqlite3", "postgres":
		default:
			return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Storage.Driver)
		}
		if c.Storage.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the sql backend")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be sql, redis or memory, got %q", c.Storage.Backend)
	}

	if c.Storage.CacheTTL < 0 {
		return fmt.Errorf("SETTINGS_CACHE_TTL must not be negative")
	}

	if c.Session.SessionsEnabled() {
		if len(c.Session.Secret) < minSessionSecretLen {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen)
		}
		if c.Session.CookieName == "" {
			return fmt.Errorf("SESSION_COOKIE must not be empty")
		}
	}

	if _, err := c.Resolver.Options(); err != nil {
		return err
	}

	return nil
}

// Options converts the resolver settings into unprotect options. An explicit
// header priority overrides the preset.
func (c *ResolverConfig) Options() ([]unprotect.Option, error) {
	var opts []unprotect.Option

	switch strings.ToLower(c.Preset) {
	case "", PresetCompatible:
		opts = append(opts, unprotect.PresetCompatible())
	case PresetDirect:
		opts = append(opts, unprotect.PresetDirectConnection())
	case PresetCloudflare:
		opts = append(opts, unprotect.PresetCloudflare())
	default:
		return nil, fmt.Errorf("RESOLVER_PRESET must be compatible, direct or cloudflare, got %q", c.Preset)
	}

	if len(c.HeaderPriority) > 0 {
		opts = append(opts, unprotect.HeaderPriority(c.HeaderPriority...))
	}

	if len(c.AllowReserved) > 0 {
		prefixes, err := unprotect.ParsePrefixes(c.AllowReserved...)
		if err != nil {
			return nil, fmt.Errorf("RESOLVER_ALLOW_RESERVED: %w", err)
		}
		opts = append(opts, unprotect.AllowReservedPrefixes(prefixes...))
	}

	if c.MaxChainLength <= 0 {
		return nil, fmt.Errorf("RESOLVER_MAX_CHAIN_LENGTH must be > 0, got %d", c.MaxChainLength)
	}

	opts = append(opts,
		unprotect.ParseForwardedElements(c.ParseForwarded),
		unprotect.AllowPrivateAddresses(c.AllowPrivate),
		unprotect.MaxChainLength(c.MaxChainLength),
	)
	return opts, nil
}
