// Package config loads and validates the service configuration.
//
// Configuration comes from a YAML file, falls back to documented
// defaults, and can be overridden by STRENGTHSYNC_* environment
// variables. Limit ceilings additionally support hot reload through the
// file watcher.
package config

import (
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai/budget"
	"github.com/lcortez-code/strengthsync/pkg/ai/features"
	"github.com/lcortez-code/strengthsync/pkg/ai/ledger"
	"github.com/lcortez-code/strengthsync/pkg/ai/provider"
	"github.com/lcortez-code/strengthsync/pkg/ai/ratelimit"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig                 `yaml:"server"`
	Logging   LoggingConfig                `yaml:"logging"`
	Metrics   MetricsConfig                `yaml:"metrics"`
	Storage   StorageConfig                `yaml:"storage"`
	Provider  provider.Config              `yaml:"provider"`
	Limits    LimitsConfig                 `yaml:"limits"`
	Features  map[string]features.Override `yaml:"features"`
	Retention ledger.RetentionConfig       `yaml:"retention"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port to bind.
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the exposition endpoint path.
	Path string `yaml:"path"`
}

// StorageConfig locates the SQLite databases.
type StorageConfig struct {
	// LedgerPath is the usage ledger database file.
	LedgerPath string `yaml:"ledger_path"`

	// ChatPath is the conversation history database file.
	ChatPath string `yaml:"chat_path"`

	// BusyTimeout is how long SQLite waits for locks.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LimitsConfig holds the admission ceilings and the optional Redis
// counter backend. Rate and Budget are the hot-reloadable sections.
type LimitsConfig struct {
	Rate   ratelimit.Ceilings `yaml:"rate"`
	Budget budget.Config      `yaml:"budget"`
	Redis  RedisConfig        `yaml:"redis"`
}

// RedisConfig selects the shared Redis window counter backend for
// multi-process deployments. Disabled, counters live in process memory.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}
