package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate")
)

// timeLayout is fixed width so TEXT comparison orders the same as time
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists content sources and content items in SQLite
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and applies migrations
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS content_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL DEFAULT '{}',
			active INTEGER NOT NULL DEFAULT 1,
			last_fetched TEXT,
			fetch_frequency_minutes INTEGER NOT NULL DEFAULT 60,
			error_count INTEGER NOT NULL DEFAULT 0,
			newsletter_id INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS content_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER NOT NULL REFERENCES content_sources(id),
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			summary TEXT,
			key_points TEXT NOT NULL DEFAULT '[]',
			score REAL NOT NULL DEFAULT 0,
			content_hash TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			published_at TEXT,
			fetched_at TEXT NOT NULL,
			processed_at TEXT,
			llm_model TEXT NOT NULL DEFAULT '',
			quality_score REAL NOT NULL DEFAULT 0,
			hallucination_score REAL,
			factual_score REAL,
			sentiment_score REAL,
			confidence_score REAL NOT NULL DEFAULT 1.0,
			needs_review INTEGER NOT NULL DEFAULT 0,
			quality_flags TEXT NOT NULL DEFAULT '[]',
			quality_checked_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_quality_score ON content_items(quality_score);`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_needs_review ON content_items(needs_review);`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_fetched_at ON content_items(fetched_at);`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_processed_at ON content_items(processed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_content_hash ON content_items(content_hash);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", v.String, err)
	}
	return &t, nil
}

func encodeJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
