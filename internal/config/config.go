// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the bot's settings:
// platform auth, fingerprint salt, database path, sweep interval, logging,
// and the ops listener.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the bot process.
type Config struct {
	// Platform
	Token string // DISCORD_TOKEN, gateway auth token

	// Fingerprinting
	Salt string // FINGERPRINT_SALT, secret mixed into private-mode hashes

	// App
	DBPath        string        // SQLite path
	DefaultPrefix string        // prefix seeded for newly seen guilds
	SweepInterval time.Duration // decay sweeper tick

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Ops listener
	OpsAddr string // host:port for /healthz and /metrics; empty disables

	// Outbound platform rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Token:         getenv("DISCORD_TOKEN", ""),
		Salt:          getenv("FINGERPRINT_SALT", ""),
		DBPath:        getenv("DB_PATH", "stunlock.db"),
		DefaultPrefix: getenv("DEFAULT_PREFIX", "9!"),
		SweepInterval: getdur("SWEEP_INTERVAL", 2*time.Second),
		LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:     getbool("LOG_PRETTY", false),
		OpsAddr:       getenv("OPS_ADDR", ":9090"),
		RateRPS:       getfloat("RATE_RPS", 10.0),
		RateBurst:     getint("RATE_BURST", 20),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	if strings.TrimSpace(cfg.Token) == "" {
		return cfg, errors.New("DISCORD_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.Salt) == "" {
		return cfg, errors.New("FINGERPRINT_SALT must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.DefaultPrefix) == "" {
		return cfg, errors.New("DEFAULT_PREFIX must not be empty")
	}
	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be a positive duration")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
