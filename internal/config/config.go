// config.go

// Environment variable loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/gatekeep/internal/entitlement"
)

// Config holds all env configuration for the gateway.
//
// The session cookie is __Host- prefixed and Secure, so the gateway must be
// reached over HTTPS (or a browser that treats localhost as secure). Set
// INSECURE_COOKIES=true for plain-HTTP development origins.
type Config struct {
	Port     string
	LogLevel slog.Level

	// Identity provider (Discord) credentials. All four are required.
	ClientID     string
	ClientSecret string
	BotToken     string
	GuildID      string
	// RedirectURI defaults to http://localhost:$PORT/api/callback.
	RedirectURI string
	// APIURL overrides the Discord API base (tests, proxies).
	APIURL string
	// AllowedRoleIDs is the entitlement allow-list; empty admits every guild member.
	AllowedRoleIDs entitlement.TagSet
	// ProviderTimeout bounds every outbound provider call. Default 8s.
	ProviderTimeout time.Duration

	// SessionTTL is the fixed absolute session lifetime. Default 10m, never renewed.
	SessionTTL time.Duration

	// AppURL is the post-login landing page; DeniedURL the "unauthorized" view.
	AppURL    string
	DeniedURL string
	// StaticDir, if set, is served at / for the portal shell.
	StaticDir string
	// InsecureCookies issues a non-Secure "session" cookie instead of __Host-session.
	InsecureCookies bool

	// Optional backends. Empty disables: in-process rate limiting, no audit log.
	RedisURL    string
	DatabaseURL string

	// Rate limit policy for /api/login and /api/callback per client IP.
	// Defaults: max=20, window=1m, lockout=5m.
	RateLoginMax     int
	RateLoginWindow  time.Duration
	RateLoginLockout time.Duration
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error naming every missing required variable.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.ClientID = os.Getenv("DISCORD_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	cfg.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.GuildID = os.Getenv("DISCORD_GUILD_ID")

	var missing []string
	for _, kv := range [][2]string{
		{"DISCORD_CLIENT_ID", cfg.ClientID},
		{"DISCORD_CLIENT_SECRET", cfg.ClientSecret},
		{"DISCORD_BOT_TOKEN", cfg.BotToken},
		{"DISCORD_GUILD_ID", cfg.GuildID},
	} {
		if kv[1] == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "3000"
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.RedirectURI = os.Getenv("DISCORD_REDIRECT_URI")
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://localhost:" + cfg.Port + "/api/callback"
	}
	cfg.APIURL = os.Getenv("DISCORD_API_URL")
	cfg.AllowedRoleIDs = entitlement.ParseTagSet(os.Getenv("DISCORD_ALLOWED_ROLE_IDS"))
	cfg.ProviderTimeout = envDuration("PROVIDER_TIMEOUT", 8*time.Second)

	cfg.SessionTTL = envDuration("SESSION_TTL", 10*time.Minute)

	cfg.AppURL = envString("APP_URL", "/")
	cfg.DeniedURL = envString("DENIED_URL", "/unauthorized.html")
	cfg.StaticDir = os.Getenv("STATIC_DIR")
	if cfg.StaticDir != "" {
		if fi, err := os.Stat(cfg.StaticDir); err != nil || !fi.IsDir() {
			return nil, errors.New("STATIC_DIR must name an existing directory")
		}
	}

	cfg.InsecureCookies = envBool("INSECURE_COOKIES")
	if cfg.InsecureCookies {
		slog.Warn("INSECURE_COOKIES set, session cookie is not Secure; use only over plain-HTTP development origins")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.RateLoginMax = envInt("RATE_LOGIN_MAX", 20)
	cfg.RateLoginWindow = envDuration("RATE_LOGIN_WINDOW", time.Minute)
	cfg.RateLoginLockout = envDuration("RATE_LOGIN_LOCKOUT", 5*time.Minute)

	return cfg, nil
}

// envString reads an env var, returning def if missing.
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envBool reports whether an env var is set to a true value ("1", "true", ...).
// Missing or unparseable values are false.
func envBool(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", false)
		return false
	}
	return b
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
