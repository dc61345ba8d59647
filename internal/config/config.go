// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret signs tokens when APP_ENV is not production and JWT_SECRET is unset.
const DevJWTSecret = "dev-insecure-secret"

// Config holds all env configuration vars for scanlog.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	LogLevel    slog.Level

	// AppEnv is "production" unless set. Anything else enables debug error details.
	AppEnv string

	// JWTSecret signs session tokens. Required in production.
	JWTSecret []byte
	// JWTExpiry is the token lifetime. Default 24h.
	JWTExpiry time.Duration

	// Per-user scan quota. Defaults: 5 per 86400s.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// CORSOrigins is the browser origin allowlist.
	CORSOrigins []string
}

// IsProduction reports whether AppEnv is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (DATABASE_URL, REDIS_URL, and JWT_SECRET in production) are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "4000"
	}

	// Parse log level, default to info
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

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if cfg.AppEnv == "" {
		cfg.AppEnv = "production"
	}

	// A guessable fallback secret lets anyone mint tokens; only allowed outside production.
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required when APP_ENV=production")
		}
		slog.Warn("JWT_SECRET unset, using insecure development secret", "app_env", cfg.AppEnv)
		secret = DevJWTSecret
	}
	cfg.JWTSecret = []byte(secret)
	cfg.JWTExpiry = envDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.RateLimitMax = envInt("RATE_LIMIT_MAX_REQUESTS", 5)
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW", 86400)) * time.Second

	cfg.CORSOrigins = envList("CORS_ORIGINS", []string{"http://localhost:3000"})

	return cfg, nil
}

// envInt reads an env var as positive int, returning def if missing or unparseable.
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

// envList reads a comma-separated env var, dropping blanks. def if nothing remains.
func envList(key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
