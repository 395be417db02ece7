package chat

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

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_conversation ON chat_messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_messages(created_at);
`

// SQLiteConfig configures the SQLite chat store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// SQLiteStore is the durable conversation backend. Same connection shape
// as the usage ledger: WAL mode, single writer connection.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error

	appendStmt  *sql.Stmt
	historyStmt *sql.Stmt
	ownerStmt   *sql.Stmt
	deleteStmt  *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the chat database at the
// configured path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("chat db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize chat schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "ai.chat.sqlite"),
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("chat store opened", "path", cfg.Path)
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
		INSERT INTO chat_messages (id, conversation_id, actor_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

	prepare(&s.historyStmt, `
		SELECT id, conversation_id, actor_id, role, content, created_at
		FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`)

	prepare(&s.ownerStmt, `
		SELECT actor_id FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`)

	prepare(&s.deleteStmt, `DELETE FROM chat_messages WHERE created_at < ?`)

	if err != nil {
		return fmt.Errorf("failed to prepare chat statements: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, msg *Message) error {
	_, err := s.appendStmt.ExecContext(ctx,
		msg.ID, msg.ConversationID, string(msg.ActorID),
		string(msg.Role), msg.Content, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// History implements Store.
func (s *SQLiteStore) History(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.historyStmt.QueryContext(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.ActorID,
			&msg.Role, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}
	return messages, nil
}

// OwnerOf implements Store.
func (s *SQLiteStore) OwnerOf(ctx context.Context, conversationID string) (ai.ActorID, error) {
	var actor string
	err := s.ownerStmt.QueryRowContext(ctx, conversationID).Scan(&actor)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve conversation owner: %w", err)
	}
	return ai.ActorID(actor), nil
}

// DeleteOlderThan implements Store.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.deleteStmt.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune chat messages: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned messages: %w", err)
	}
	return deleted, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.appendStmt, s.historyStmt, s.ownerStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
