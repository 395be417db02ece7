package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls how long ledger records are kept.
//
// The ledger is append-only but not append-forever: budget enforcement only
// reads the current UTC day, so anything older exists purely for audit and
// can be pruned once the audit window lapses.
type RetentionConfig struct {
	// Days is how many days of records to keep. Zero disables pruning.
	Days int `yaml:"days"`

	// Schedule is a standard cron expression for when to prune.
	// Default: "0 3 * * *" (daily at 03:00).
	Schedule string `yaml:"schedule"`
}

// DefaultRetentionConfig returns the default retention policy: 90 days,
// pruned nightly.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{Days: 90, Schedule: "0 3 * * *"}
}

// Pruner deletes ledger records older than the retention period.
type Pruner struct {
	store  Store
	config RetentionConfig
	clock  func() time.Time
	logger *slog.Logger
}

// NewPruner creates a pruner over the given store.
func NewPruner(store Store, cfg RetentionConfig) *Pruner {
	return &Pruner{
		store:  store,
		config: cfg,
		clock:  time.Now,
		logger: slog.Default().With("component", "ai.ledger.pruner"),
	}
}

// Prune runs one pruning cycle and reports how many records were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.Days <= 0 {
		return 0, nil
	}

	cutoff := p.clock().UTC().AddDate(0, 0, -p.config.Days)
	deleted, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention prune failed: %w", err)
	}
	return deleted, nil
}

// Scheduler runs the pruner on its cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewScheduler creates a scheduler for the pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: slog.Default().With("component", "ai.ledger.scheduler"),
	}
}

// Start begins scheduled pruning. With no schedule configured it does
// nothing. The scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pruner.config.Schedule == "" || s.pruner.config.Days <= 0 {
		s.logger.Info("ledger retention disabled, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.pruner.config.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.pruner.config.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.pruner.config.Schedule, func() {
		deleted, err := s.pruner.Prune(ctx)
		if err != nil {
			s.logger.Error("scheduled ledger pruning failed", "error", err)
			return
		}
		if deleted > 0 {
			s.logger.Info("pruned usage records", "deleted", deleted)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule ledger pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("ledger retention scheduler started",
		"schedule", s.pruner.config.Schedule,
		"retention_days", s.pruner.config.Days,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("ledger retention scheduler stopped")
	}
}
