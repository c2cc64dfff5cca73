// Package messages keeps the demo guestbook: messages posted through HTML
// forms, stored in SQLite, with uploaded files written next to it.
package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

var ErrEmptyText = errors.New("message text cannot be empty")

type Message struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists messages. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	insertStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// Open opens (or creates) the database at dsn. ":memory:" keeps everything
// in process.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and an in-memory database lives only as
	// long as its one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		attachments TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	`)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO messages (id, author, text, attachments, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT id, author, text, attachments, created_at
		FROM messages
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}
	return nil
}

// Add stores m, assigning an ID and creation time when they are unset, and
// returns the stored copy.
func (s *Store) Add(ctx context.Context, m Message) (Message, error) {
	if m.Text == "" {
		return Message{}, ErrEmptyText
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}

	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal attachments: %w", err)
	}

	if _, err := s.insertStmt.ExecContext(ctx, m.ID, m.Author, m.Text, string(attachments), m.CreatedAt.UnixNano()); err != nil {
		return Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return m, nil
}

// List returns every message, oldest first.
func (s *Store) List(ctx context.Context) ([]Message, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m           Message
			attachments string
			created     int64
		)
		if err := rows.Scan(&m.ID, &m.Author, &m.Text, &attachments, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments of %s: %w", m.ID, err)
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) Close() error {
	s.insertStmt.Close()
	s.listStmt.Close()
	return s.db.Close()
}
