package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "text": true}

// Validate rejects configurations that cannot run. Call after
// ApplyDefaults; defaults are assumed present.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be json or text; got %q", cfg.Logging.Format)
	}

	if cfg.Storage.LedgerPath == "" {
		return fmt.Errorf("storage.ledger_path cannot be empty")
	}

	if err := validateCeilings(cfg); err != nil {
		return err
	}

	if cfg.Limits.Redis.Enabled && cfg.Limits.Redis.Addr == "" {
		return fmt.Errorf("limits.redis.addr is required when redis is enabled")
	}

	if cfg.Provider.APIKey != "" && cfg.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout cannot be negative")
	}

	if cfg.Retention.Days < 0 {
		return fmt.Errorf("retention.days cannot be negative")
	}
	if cfg.Retention.Days > 0 && cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("retention.schedule is not a valid cron expression: %w", err)
		}
	}

	return nil
}

func validateCeilings(cfg *Config) error {
	tiers := []struct {
		name  string
		value int64
	}{
		{"limits.rate.actor.minute", cfg.Limits.Rate.Actor.Minute},
		{"limits.rate.actor.hour", cfg.Limits.Rate.Actor.Hour},
		{"limits.rate.actor.day", cfg.Limits.Rate.Actor.Day},
		{"limits.rate.group.minute", cfg.Limits.Rate.Group.Minute},
		{"limits.rate.group.hour", cfg.Limits.Rate.Group.Hour},
		{"limits.rate.group.day", cfg.Limits.Rate.Group.Day},
	}
	for _, t := range tiers {
		if t.value < 0 {
			return fmt.Errorf("%s cannot be negative", t.name)
		}
	}

	if cfg.Limits.Budget.ActorDailyTokens < 0 {
		return fmt.Errorf("limits.budget.actor_daily_tokens cannot be negative")
	}
	if cfg.Limits.Budget.GroupDailyTokens < 0 {
		return fmt.Errorf("limits.budget.group_daily_tokens cannot be negative")
	}
	return nil
}
