package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// schema creates the usage ledger table. The two (principal, created_at)
// indexes serve the budget governor's hot path: a sum over one principal's
// records since UTC midnight.
const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL,
    group_id TEXT NOT NULL,
    feature TEXT NOT NULL,
    prompt_tokens INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    total_tokens INTEGER NOT NULL,
    model TEXT NOT NULL,
    latency_ms INTEGER NOT NULL,
    success INTEGER NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    request_summary TEXT NOT NULL DEFAULT '',
    response_summary TEXT NOT NULL DEFAULT '',
    cost_cents INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_actor_time ON usage_records(actor_id, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_group_time ON usage_records(group_id, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_records(created_at);
`

// SQLiteConfig configures the SQLite ledger store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// SQLiteStore is the durable ledger backend.
//
// It opens the database in WAL mode with a single writer connection, the
// shape SQLite performs best in for an append-mostly workload.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error

	appendStmt     *sql.Stmt
	sumActorStmt   *sql.Stmt
	sumGroupStmt   *sql.Stmt
	usageActorStmt *sql.Stmt
	usageGroupStmt *sql.Stmt
	listStmt       *sql.Stmt
	deleteStmt     *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the ledger database at the
// configured path and prepares the hot-path statements.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite supports a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "ai.ledger.sqlite"),
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("usage ledger opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	prepare := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = s.db.Prepare(query)
	}

	prepare(&s.appendStmt, `
		INSERT INTO usage_records (
			id, actor_id, group_id, feature,
			prompt_tokens, completion_tokens, total_tokens,
			model, latency_ms, success, error_message,
			request_summary, response_summary, cost_cents, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepare(&s.sumActorStmt, `
		SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records
		WHERE actor_id = ? AND success = 1 AND created_at >= ?`)

	prepare(&s.sumGroupStmt, `
		SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records
		WHERE group_id = ? AND success = 1 AND created_at >= ?`)

	prepare(&s.usageActorStmt, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 1 THEN total_tokens ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN success = 1 THEN cost_cents ELSE 0 END), 0)
		FROM usage_records
		WHERE actor_id = ? AND created_at >= ?`)

	prepare(&s.usageGroupStmt, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 1 THEN total_tokens ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN success = 1 THEN cost_cents ELSE 0 END), 0)
		FROM usage_records
		WHERE group_id = ? AND created_at >= ?`)

	prepare(&s.listStmt, `
		SELECT id, actor_id, group_id, feature,
		       prompt_tokens, completion_tokens, total_tokens,
		       model, latency_ms, success, error_message,
		       request_summary, response_summary, cost_cents, created_at
		FROM usage_records
		ORDER BY created_at DESC
		LIMIT ?`)

	prepare(&s.deleteStmt, `DELETE FROM usage_records WHERE created_at < ?`)

	if err != nil {
		return fmt.Errorf("failed to prepare ledger statements: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, rec *Record) error {
	success := 0
	if rec.Success {
		success = 1
	}

	_, err := s.appendStmt.ExecContext(ctx,
		rec.ID, string(rec.ActorID), string(rec.GroupID), string(rec.Feature),
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Model, rec.LatencyMs, success, rec.ErrorMessage,
		rec.RequestSummary, rec.ResponseSummary, rec.CostCents,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}
	return nil
}

// SumActorTokensSince implements Store.
func (s *SQLiteStore) SumActorTokensSince(ctx context.Context, actor ai.ActorID, since time.Time) (int64, error) {
	var sum int64
	err := s.sumActorStmt.QueryRowContext(ctx, string(actor), since.UTC()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum actor tokens: %w", err)
	}
	return sum, nil
}

// SumGroupTokensSince implements Store.
func (s *SQLiteStore) SumGroupTokensSince(ctx context.Context, group ai.GroupID, since time.Time) (int64, error) {
	var sum int64
	err := s.sumGroupStmt.QueryRowContext(ctx, string(group), since.UTC()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum group tokens: %w", err)
	}
	return sum, nil
}

// ActorUsageSince implements Store.
func (s *SQLiteStore) ActorUsageSince(ctx context.Context, actor ai.ActorID, since time.Time) (Usage, error) {
	var u Usage
	err := s.usageActorStmt.QueryRowContext(ctx, string(actor), since.UTC()).
		Scan(&u.Requests, &u.TotalTokens, &u.CostCents)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to aggregate actor usage: %w", err)
	}
	return u, nil
}

// GroupUsageSince implements Store.
func (s *SQLiteStore) GroupUsageSince(ctx context.Context, group ai.GroupID, since time.Time) (Usage, error) {
	var u Usage
	err := s.usageGroupStmt.QueryRowContext(ctx, string(group), since.UTC()).
		Scan(&u.Requests, &u.TotalTokens, &u.CostCents)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to aggregate group usage: %w", err)
	}
	return u, nil
}

// ListRecent implements Store.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.listStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec     Record
			success int
		)
		err := rows.Scan(
			&rec.ID, &rec.ActorID, &rec.GroupID, &rec.Feature,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.Model, &rec.LatencyMs, &success, &rec.ErrorMessage,
			&rec.RequestSummary, &rec.ResponseSummary, &rec.CostCents,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Success = success == 1
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return records, nil
}

// DeleteOlderThan implements Store.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.deleteStmt.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned records: %w", err)
	}
	return deleted, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{
			s.appendStmt, s.sumActorStmt, s.sumGroupStmt,
			s.usageActorStmt, s.usageGroupStmt, s.listStmt, s.deleteStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
