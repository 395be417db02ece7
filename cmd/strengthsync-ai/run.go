package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lcortez-code/strengthsync/pkg/ai/budget"
	"github.com/lcortez-code/strengthsync/pkg/ai/chat"
	"github.com/lcortez-code/strengthsync/pkg/ai/features"
	"github.com/lcortez-code/strengthsync/pkg/ai/gate"
	"github.com/lcortez-code/strengthsync/pkg/ai/gateway"
	"github.com/lcortez-code/strengthsync/pkg/ai/ledger"
	"github.com/lcortez-code/strengthsync/pkg/ai/provider"
	"github.com/lcortez-code/strengthsync/pkg/ai/ratelimit"
	"github.com/lcortez-code/strengthsync/pkg/ai/window"
	"github.com/lcortez-code/strengthsync/pkg/config"
	"github.com/lcortez-code/strengthsync/pkg/server"
	"github.com/lcortez-code/strengthsync/pkg/telemetry/logging"
	"github.com/lcortez-code/strengthsync/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the governance gateway service",
	Long: `Start the governance gateway service with the specified configuration.

Examples:
  # Start with defaults
  strengthsync-ai run

  # Start with a config file
  strengthsync-ai run --config /etc/strengthsync/ai.yaml

  # Override the listen address
  strengthsync-ai run --listen 0.0.0.0:8090

  # Validate configuration without starting
  strengthsync-ai run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Usage ledger.
	records, err := ledger.NewSQLiteStore(ledger.SQLiteConfig{
		Path:        cfg.Storage.LedgerPath,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open usage ledger: %w", err)
	}
	defer records.Close()

	// Conversation history.
	conversations, err := chat.NewSQLiteStore(chat.SQLiteConfig{
		Path:        cfg.Storage.ChatPath,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open chat store: %w", err)
	}
	defer conversations.Close()

	// Window counters: Redis when shared counters are configured,
	// process memory otherwise.
	var counters window.Store
	if cfg.Limits.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Limits.Redis.Addr,
			Password: cfg.Limits.Redis.Password,
			DB:       cfg.Limits.Redis.DB,
		})
		store, err := window.NewRedisStore(client)
		if err != nil {
			return fmt.Errorf("failed to connect rate limit store: %w", err)
		}
		defer client.Close()
		counters = store
		logger.Info("using shared Redis window counters", "addr", cfg.Limits.Redis.Addr)
	} else {
		store := window.NewMemoryStore(window.MemoryStoreConfig{})
		store.Start()
		defer store.Stop()
		counters = store
	}

	limiter := ratelimit.NewLimiter(counters, cfg.Limits.Rate)
	governor := budget.NewGovernor(records, cfg.Limits.Budget)

	registry, err := features.NewRegistry(cfg.Features)
	if err != nil {
		return fmt.Errorf("invalid feature configuration: %w", err)
	}

	// The provider is optional: without an API key the service still
	// serves usage reports, but health reports unready and every
	// generation call fails with a configuration error.
	var backend provider.Provider
	if cfg.Provider.APIKey != "" {
		p, err := provider.NewAnthropicProvider(cfg.Provider)
		if err != nil {
			return fmt.Errorf("failed to configure provider: %w", err)
		}
		defer p.Close()
		backend = p
	} else {
		logger.Warn("no provider API key configured, generation is disabled")
	}

	var observer gateway.Observer
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		m := metrics.New(nil)
		observer = m
		metricsHandler = m.Handler()
	}

	gw, err := gateway.New(gateway.Options{
		Gate:     gate.New(limiter, governor),
		Registry: registry,
		Ledger:   records,
		Provider: backend,
		Observer: observer,
	})
	if err != nil {
		return err
	}

	// Retention: the scheduler prunes ledger records nightly; chat
	// history older than the same window is swept at startup.
	scheduler := ledger.NewScheduler(ledger.NewPruner(records, cfg.Retention))
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.Retention.Days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Retention.Days)
		if deleted, err := conversations.DeleteOlderThan(ctx, cutoff); err != nil {
			logger.Warn("chat history sweep failed", "error", err)
		} else if deleted > 0 {
			logger.Info("swept expired chat history", "deleted", deleted)
		}
	}

	// Hot reload: ceiling changes apply without restart; everything
	// else needs one.
	if cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			return err
		}
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				limiter.SetCeilings(next.Limits.Rate)
				governor.SetConfig(next.Limits.Budget)
			})
			if err != nil {
				slog.Error("config watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	srv := server.New(cfg.Server, gw, metricsHandler, cfg.Metrics.Path)
	return srv.Start(ctx)
}
