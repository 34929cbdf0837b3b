// Package history records executed queries in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// DefaultListLimit is the number of entries List returns when limit <= 0.
const DefaultListLimit = 20

// Entry is one executed query.
type Entry struct {
	ID           string
	Source       string
	SQL          string
	Rows         int64
	AppliedLimit int
	Elapsed      time.Duration
	Error        string
	ExecutedAt   time.Time
}

// Failed reports whether the query ended with an error.
func (e Entry) Failed() bool { return e.Error != "" }

// Store is a query history database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path and runs
// pending migrations. Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened query history", slog.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores e. Empty ID and zero ExecutedAt are filled in.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if s.db == nil {
		return e, fmt.Errorf("database not opened")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_history (id, source, sql_text, row_count, applied_limit, elapsed_ms, error, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.SQL, e.Rows, e.AppliedLimit, e.Elapsed.Milliseconds(),
		nullString(e.Error), e.ExecutedAt.UnixMilli(),
	)
	if err != nil {
		return e, fmt.Errorf("failed to record query: %w", err)
	}

	s.logger.Debug("recorded query", slog.String("id", e.ID), slog.Bool("failed", e.Failed()))
	return e, nil
}

// List returns up to limit entries, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, sql_text, row_count, applied_limit, elapsed_ms, error, executed_at
		 FROM query_history ORDER BY executed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			elapsedMS int64
			errMsg    sql.NullString
			executed  int64
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.SQL, &e.Rows, &e.AppliedLimit, &elapsedMS, &errMsg, &executed); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.Error = errMsg.String
		e.ExecutedAt = time.UnixMilli(executed).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// nullString returns a sql.NullString for optional string fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
