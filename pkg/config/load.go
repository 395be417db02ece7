package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults and
// STRENGTHSYNC_* environment overrides, and validates the result.
//
// An empty path skips the file and yields defaults plus environment
// overrides, so the service can run with no config file at all.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies STRENGTHSYNC_SECTION_FIELD environment
// variables on top of the loaded configuration. Environment always wins
// over the file; the API key in particular should come from here, not
// from a file on disk.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt64 := func(key string, dst *int64) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.ParseInt(val, 10, 64); err == nil {
				*dst = i
			}
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	setString("STRENGTHSYNC_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("STRENGTHSYNC_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("STRENGTHSYNC_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("STRENGTHSYNC_LOGGING_FORMAT", &cfg.Logging.Format)

	setBool("STRENGTHSYNC_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("STRENGTHSYNC_METRICS_PATH", &cfg.Metrics.Path)

	setString("STRENGTHSYNC_STORAGE_LEDGER_PATH", &cfg.Storage.LedgerPath)
	setString("STRENGTHSYNC_STORAGE_CHAT_PATH", &cfg.Storage.ChatPath)

	setString("STRENGTHSYNC_PROVIDER_BASE_URL", &cfg.Provider.BaseURL)
	setString("STRENGTHSYNC_PROVIDER_API_KEY", &cfg.Provider.APIKey)
	setDuration("STRENGTHSYNC_PROVIDER_TIMEOUT", &cfg.Provider.Timeout)
	setInt("STRENGTHSYNC_PROVIDER_MAX_RETRIES", &cfg.Provider.MaxRetries)

	setInt64("STRENGTHSYNC_LIMITS_ACTOR_MINUTE", &cfg.Limits.Rate.Actor.Minute)
	setInt64("STRENGTHSYNC_LIMITS_ACTOR_HOUR", &cfg.Limits.Rate.Actor.Hour)
	setInt64("STRENGTHSYNC_LIMITS_ACTOR_DAY", &cfg.Limits.Rate.Actor.Day)
	setInt64("STRENGTHSYNC_LIMITS_GROUP_MINUTE", &cfg.Limits.Rate.Group.Minute)
	setInt64("STRENGTHSYNC_LIMITS_GROUP_HOUR", &cfg.Limits.Rate.Group.Hour)
	setInt64("STRENGTHSYNC_LIMITS_GROUP_DAY", &cfg.Limits.Rate.Group.Day)
	setInt64("STRENGTHSYNC_LIMITS_ACTOR_DAILY_TOKENS", &cfg.Limits.Budget.ActorDailyTokens)
	setInt64("STRENGTHSYNC_LIMITS_GROUP_DAILY_TOKENS", &cfg.Limits.Budget.GroupDailyTokens)

	setBool("STRENGTHSYNC_REDIS_ENABLED", &cfg.Limits.Redis.Enabled)
	setString("STRENGTHSYNC_REDIS_ADDR", &cfg.Limits.Redis.Addr)
	setString("STRENGTHSYNC_REDIS_PASSWORD", &cfg.Limits.Redis.Password)
	setInt("STRENGTHSYNC_REDIS_DB", &cfg.Limits.Redis.DB)

	setInt("STRENGTHSYNC_RETENTION_DAYS", &cfg.Retention.Days)
	setString("STRENGTHSYNC_RETENTION_SCHEDULE", &cfg.Retention.Schedule)
}
