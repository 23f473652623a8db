// Package persistence keeps the local chat history in sqlite. The
// backend owns conversations; this cache only remembers which backend
// conversation the client was in and the turns already exchanged, so a
// new process can pick up where the last one left off.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	schemaVersion  = 1
	schemaChecksum = "td-v1-chat-history"
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) <homeDir>/taskdeck.db and ensures the
// schema is current.
func Open(homeDir string) (*Store, error) {
	dbPath := filepath.Join(homeDir, "taskdeck.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_info (
			version INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			remote_id INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_info`).Scan(&count); err != nil {
		return fmt.Errorf("read schema ledger: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_info (version, checksum) VALUES (?, ?)`,
			schemaVersion, schemaChecksum); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

// Conversation is one locally tracked chat thread.
type Conversation struct {
	ID        int64
	UserID    string
	RemoteID  int64 // backend conversation_id, 0 until the first reply
	CreatedAt time.Time
}

// LatestConversation returns the most recent conversation for a user, or
// nil when none exists.
func (s *Store) LatestConversation(ctx context.Context, userID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(remote_id, 0), created_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1;
	`, userID)

	var c Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.RemoteID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest conversation: %w", err)
	}
	return &c, nil
}

// CreateConversation starts a new local conversation for a user.
func (s *Store) CreateConversation(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user_id required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id) VALUES (?)`, userID)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("conversation id: %w", err)
	}
	return id, nil
}

// SetRemoteID records the backend's conversation_id once known.
func (s *Store) SetRemoteID(ctx context.Context, conversationID, remoteID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET remote_id = ? WHERE id = ?`, remoteID, conversationID)
	if err != nil {
		return fmt.Errorf("set remote id: %w", err)
	}
	return nil
}

// TurnRecord is one persisted chat turn.
type TurnRecord struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}

// AddTurn appends a turn to a conversation.
func (s *Store) AddTurn(ctx context.Context, conversationID int64, turnID, role, content string, createdAt time.Time) error {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case "user", "assistant":
	default:
		return fmt.Errorf("invalid role %q", role)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?);
	`, turnID, conversationID, role, content, createdAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// ListTurns returns a conversation's turns oldest first.
func (s *Store) ListTurns(ctx context.Context, conversationID int64) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC;
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turn rows: %w", err)
	}
	return out, nil
}
