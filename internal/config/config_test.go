package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so ambient environment does not
// leak into the tests. t.Setenv restores originals on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DISCORD_TOKEN", "FINGERPRINT_SALT", "DB_PATH", "DEFAULT_PREFIX",
		"SWEEP_INTERVAL", "LOG_LEVEL", "LOG_PRETTY", "OPS_ADDR",
		"RATE_RPS", "RATE_BURST",
	} {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("FINGERPRINT_SALT", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "stunlock.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.DefaultPrefix != "9!" {
		t.Errorf("DefaultPrefix = %q", cfg.DefaultPrefix)
	}
	if cfg.SweepInterval != 2*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	if cfg.LogLevel != "info" || cfg.LogPretty {
		t.Errorf("logging defaults = %q pretty=%v", cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.OpsAddr != ":9090" {
		t.Errorf("OpsAddr = %q", cfg.OpsAddr)
	}
	if cfg.RateRPS != 10.0 || cfg.RateBurst != 20 {
		t.Errorf("rate defaults = %v / %d", cfg.RateRPS, cfg.RateBurst)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("DB_PATH", "/tmp/bot.db")
	t.Setenv("DEFAULT_PREFIX", "!")
	t.Setenv("SWEEP_INTERVAL", "500ms")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/bot.db" || cfg.DefaultPrefix != "!" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SweepInterval != 500*time.Millisecond {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	// "warning" is normalized to "warn".
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.LogPretty {
		t.Error("LogPretty not parsed")
	}
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 5 {
		t.Errorf("rate overrides = %v / %d", cfg.RateRPS, cfg.RateBurst)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(t *testing.T)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(t *testing.T) { t.Setenv("DISCORD_TOKEN", "") },
			wantErr: "DISCORD_TOKEN",
		},
		{
			name:    "missing salt",
			mutate:  func(t *testing.T) { t.Setenv("FINGERPRINT_SALT", " ") },
			wantErr: "FINGERPRINT_SALT",
		},
		{
			name:    "bad log level",
			mutate:  func(t *testing.T) { t.Setenv("LOG_LEVEL", "loud") },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "negative sweep interval",
			mutate:  func(t *testing.T) { t.Setenv("SWEEP_INTERVAL", "-1s") },
			wantErr: "SWEEP_INTERVAL",
		},
		{
			name:    "negative rate",
			mutate:  func(t *testing.T) { t.Setenv("RATE_RPS", "-1") },
			wantErr: "RATE_RPS",
		},
		{
			name:    "zero burst",
			mutate:  func(t *testing.T) { t.Setenv("RATE_BURST", "0") },
			wantErr: "RATE_BURST",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			tc.mutate(t)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("SWEEP_INTERVAL", "soon")
	t.Setenv("RATE_RPS", "fast")
	t.Setenv("RATE_BURST", "many")
	t.Setenv("LOG_PRETTY", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SweepInterval != 2*time.Second || cfg.RateRPS != 10.0 || cfg.RateBurst != 20 || cfg.LogPretty {
		t.Fatalf("unparseable values did not fall back: %+v", cfg)
	}
}
