package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"relaybot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.DialogueStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		origin          TEXT NOT NULL,
		content         TEXT NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreateConversation returns the conversation for id, creating it on
// first contact. The primary key on id plus INSERT OR IGNORE makes concurrent
// first messages from a new identifier converge on a single row.
func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, id string) (domain.Conversation, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, created_at) VALUES (?, ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation %s: %w", id, err)
	}

	var conv domain.Conversation
	err = s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return conv, nil
}

// AppendMessage writes an immutable log entry. Seq is assigned by SQLite in
// insertion order.
func (s *SQLiteStore) AppendMessage(ctx context.Context, convID string, origin domain.Origin, content string) (domain.MessageRecord, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, origin, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		convID, string(origin), content, now,
	)
	if err != nil {
		return domain.MessageRecord{}, fmt.Errorf("append message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.MessageRecord{}, fmt.Errorf("append message: %w", err)
	}

	return domain.MessageRecord{
		Seq:            seq,
		ConversationID: convID,
		Origin:         origin,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

// Messages returns the last limit messages in chronological order.
func (s *SQLiteStore) Messages(ctx context.Context, convID string, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, conversation_id, origin, content, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY seq DESC LIMIT ?`, convID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.MessageRecord
	for rows.Next() {
		var m domain.MessageRecord
		var origin string
		if err := rows.Scan(&m.Seq, &m.ConversationID, &origin, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Origin = domain.Origin(origin)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ConversationCount reports how many conversations exist. Used by status and
// doctor tooling.
func (s *SQLiteStore) ConversationCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
