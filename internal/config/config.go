package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	Server    ServerConfig
	App       AppConfig
	API       APIConfig
	Cache     CacheConfig
	Tenant    TenantConfig
	Analytics AnalyticsConfig
	Storage   StorageConfig
	Log       LogConfig
	CORS      CORSConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Addr string
	Port int
}

type AppConfig struct {
	Env string
}

type APIConfig struct {
	BaseURL string
	Timeout string
}

type CacheConfig struct {
	TTL           string
	RedisAddr     string
	RedisPassword string
}

type TenantConfig struct {
	RulesFile string
}

type AnalyticsConfig struct {
	Enabled     bool
	PostHogHost string
	PostHogKey  string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type CORSConfig struct {
	AllowedOrigins string
}

// AdminConfig guards the /admin endpoints. An empty token leaves them unmounted.
type AdminConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server:    ServerConfig{Addr: "0.0.0.0", Port: 8080},
		App:       AppConfig{Env: EnvProduction},
		API:       APIConfig{Timeout: "10s"},
		Cache:     CacheConfig{TTL: "60s"},
		Analytics: AnalyticsConfig{Enabled: true, PostHogHost: "https://us.i.posthog.com"},
		Storage:   StorageConfig{DataDir: defaultDataDir()},
		Log:       LogConfig{Level: "info"},
		CORS:      CORSConfig{AllowedOrigins: "*"},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/folio/config.json, then applies FOLIO_* environment
// variables (and their legacy aliases) on top. Secrets are env-only.
//
// A missing API base URL is not an error: the server still starts and
// every fetch reports it.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value files into the process environment. Missing
// files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func (c Config) validate() error {
	c.App.Env = strings.ToLower(strings.TrimSpace(c.App.Env))
	if c.App.Env != EnvProduction && c.App.Env != EnvDevelopment {
		return fmt.Errorf("invalid app.env %q: want %q or %q", c.App.Env, EnvProduction, EnvDevelopment)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache.ttl %q: %w", c.Cache.TTL, err)
	}
	return nil
}

// Development reports whether the revalidation cache is bypassed.
func (c Config) Development() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Env), EnvDevelopment)
}

// ListenAddr is the host:port the HTTP server binds.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Addr, c.Server.Port)
}

// APITimeout returns the backend request timeout. Load has validated it.
func (c Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// CacheTTL returns the revalidation window. Load has validated it.
func (c Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// AllowedOrigins splits cors.allowed_origins on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORS.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// AnalyticsActive reports whether events should leave the process.
func (c Config) AnalyticsActive() bool {
	return c.Analytics.Enabled && c.Analytics.PostHogKey != ""
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "folio-data"
		}
	}
	return filepath.Join(dir, "folio")
}
