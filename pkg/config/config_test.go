package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:8090" {
		t.Errorf("Unexpected listen address: %q", cfg.Server.ListenAddress)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Limits.Rate.Actor.Minute != 10 {
		t.Errorf("Expected default actor minute ceiling 10, got %d", cfg.Limits.Rate.Actor.Minute)
	}
	if cfg.Limits.Budget.ActorDailyTokens != 100_000 {
		t.Errorf("Expected default actor token budget, got %d", cfg.Limits.Budget.ActorDailyTokens)
	}
	if cfg.Retention.Days != 90 {
		t.Errorf("Expected default retention 90 days, got %d", cfg.Retention.Days)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
logging:
  level: debug
  format: text
limits:
  rate:
    actor:
      minute: 3
      hour: 30
      day: 100
    group:
      minute: 20
      hour: 200
      day: 1000
  budget:
    actor_daily_tokens: 5000
    group_daily_tokens: 50000
features:
  review_draft:
    model: claude-opus-4-1
    max_tokens: 2048
retention:
  days: 30
  schedule: "0 4 * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("Unexpected listen address: %q", cfg.Server.ListenAddress)
	}
	if cfg.Limits.Rate.Actor.Minute != 3 {
		t.Errorf("Expected actor minute 3, got %d", cfg.Limits.Rate.Actor.Minute)
	}
	if cfg.Limits.Budget.ActorDailyTokens != 5000 {
		t.Errorf("Expected actor budget 5000, got %d", cfg.Limits.Budget.ActorDailyTokens)
	}
	if ov, ok := cfg.Features["review_draft"]; !ok || ov.ModelID != "claude-opus-4-1" || ov.MaxTokens != 2048 {
		t.Errorf("Feature override not loaded: %+v", cfg.Features)
	}
	if cfg.Retention.Days != 30 {
		t.Errorf("Expected retention 30, got %d", cfg.Retention.Days)
	}
	// Unset sections still receive defaults.
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("Expected default shutdown timeout, got %s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
limits:
  budget:
    actor_daily_tokens: 5000
`)

	t.Setenv("STRENGTHSYNC_LOGGING_LEVEL", "warn")
	t.Setenv("STRENGTHSYNC_LIMITS_ACTOR_DAILY_TOKENS", "7777")
	t.Setenv("STRENGTHSYNC_PROVIDER_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected env level override, got %q", cfg.Logging.Level)
	}
	if cfg.Limits.Budget.ActorDailyTokens != 7777 {
		t.Errorf("Expected env budget override, got %d", cfg.Limits.Budget.ActorDailyTokens)
	}
	if cfg.Provider.APIKey != "from-env" {
		t.Errorf("Expected API key from env, got %q", cfg.Provider.APIKey)
	}
}

func TestLoad_RejectsMissingFile(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestValidate_RejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"bad log level",
			func(c *Config) { c.Logging.Level = "verbose" },
			"logging.level",
		},
		{
			"bad log format",
			func(c *Config) { c.Logging.Format = "xml" },
			"logging.format",
		},
		{
			"negative ceiling",
			func(c *Config) { c.Limits.Rate.Actor.Minute = -1 },
			"limits.rate.actor.minute",
		},
		{
			"negative budget",
			func(c *Config) { c.Limits.Budget.GroupDailyTokens = -5 },
			"group_daily_tokens",
		},
		{
			"redis enabled without addr",
			func(c *Config) { c.Limits.Redis.Enabled = true },
			"limits.redis.addr",
		},
		{
			"bad retention schedule",
			func(c *Config) { c.Retention.Schedule = "whenever" },
			"retention.schedule",
		},
		{
			"negative retention",
			func(c *Config) { c.Retention.Days = -1 },
			"retention.days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}
