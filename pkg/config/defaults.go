package config

import (
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai/budget"
	"github.com/lcortez-code/strengthsync/pkg/ai/ledger"
	"github.com/lcortez-code/strengthsync/pkg/ai/ratelimit"
)

// ApplyDefaults fills in every unset field with its documented default.
// A zero-value Config becomes a runnable local configuration.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8090"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = "strengthsync-usage.db"
	}
	if cfg.Storage.ChatPath == "" {
		cfg.Storage.ChatPath = "strengthsync-chat.db"
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = 5 * time.Second
	}

	if cfg.Limits.Rate == (ratelimit.Ceilings{}) {
		cfg.Limits.Rate = ratelimit.DefaultCeilings()
	}
	if cfg.Limits.Budget == (budget.Config{}) {
		cfg.Limits.Budget = budget.DefaultConfig()
	}

	if cfg.Retention == (ledger.RetentionConfig{}) {
		cfg.Retention = ledger.DefaultRetentionConfig()
	} else if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = ledger.DefaultRetentionConfig().Schedule
	}
}
