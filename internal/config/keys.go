package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key       string
	typ       keyType
	env       string
	aliases   []string            // older variable names, consulted when env is unset
	fromAlias func(string) string // maps a value read through an alias onto the key's domain
	secret    bool
	apply     func(cfg *Config, v any)
	extract   func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.addr", typ: kString, env: "FOLIO_SERVER_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Server.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Addr },
	},
	{
		key: "server.port", typ: kInt, env: "FOLIO_SERVER_PORT", aliases: []string{"PORT"},
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "app.env", typ: kString, env: "FOLIO_APP_ENV", aliases: []string{"NODE_ENV"},
		// NODE_ENV also carries values like "test" or "staging"; only
		// "development" disables caching.
		fromAlias: func(v string) string {
			if strings.EqualFold(strings.TrimSpace(v), EnvDevelopment) {
				return EnvDevelopment
			}
			return EnvProduction
		},
		apply:   func(cfg *Config, v any) { cfg.App.Env = v.(string) },
		extract: func(cfg Config) any { return cfg.App.Env },
	},
	{
		key: "api.base_url", typ: kString, env: "FOLIO_API_BASE_URL", aliases: []string{"COFOUNDS_API_URL"},
		apply:   func(cfg *Config, v any) { cfg.API.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.API.BaseURL },
	},
	{
		key: "api.timeout", typ: kString, env: "FOLIO_API_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.API.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Timeout },
	},
	{
		key: "cache.ttl", typ: kString, env: "FOLIO_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.TTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.TTL },
	},
	{
		key: "cache.redis_addr", typ: kString, env: "FOLIO_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisAddr },
	},
	{
		key: "cache.redis_password", typ: kString, env: "FOLIO_REDIS_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisPassword = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisPassword },
	},
	{
		key: "tenant.rules_file", typ: kString, env: "FOLIO_TENANT_RULES_FILE",
		apply:   func(cfg *Config, v any) { cfg.Tenant.RulesFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Tenant.RulesFile },
	},
	{
		key: "analytics.enabled", typ: kBool, env: "FOLIO_ANALYTICS_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Analytics.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Analytics.Enabled },
	},
	{
		key: "analytics.posthog_host", typ: kString, env: "FOLIO_POSTHOG_HOST", aliases: []string{"VITE_PUBLIC_POSTHOG_HOST"},
		apply:   func(cfg *Config, v any) { cfg.Analytics.PostHogHost = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.PostHogHost },
	},
	{
		key: "analytics.posthog_key", typ: kString, env: "FOLIO_POSTHOG_KEY", aliases: []string{"VITE_PUBLIC_POSTHOG_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Analytics.PostHogKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.PostHogKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FOLIO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "FOLIO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "cors.allowed_origins", typ: kString, env: "FOLIO_CORS_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.CORS.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.CORS.AllowedOrigins },
	},
	{
		key: "admin.token", typ: kString, env: "FOLIO_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Admin.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Admin.Token },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value among the key's variable
// and its aliases.
func (s keySpec) lookupEnv() (name, value string) {
	for _, n := range append([]string{s.env}, s.aliases...) {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := s.lookupEnv()
		if raw == "" {
			continue
		}
		if name != s.env && s.fromAlias != nil {
			raw = s.fromAlias(raw)
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
