// Package sqlite provides the local saved-interview database. It is the
// fallback store that keeps working when the remote database is unreachable.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

// Config holds database configuration.
type Config struct {
	Path     string // Path to SQLite database file
	MaxConns int    // Maximum number of open connections (default: 4)
}

// Store wraps the SQLite connection with a prepared statement cache.
type Store struct {
	cfg Config

	mu    sync.RWMutex
	db    *sql.DB
	stmts map[string]*sql.Stmt
}

// NewStore opens the local database, runs migrations and enables WAL mode.
func NewStore(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		cfg:   cfg,
		db:    db,
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

func open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// WAL mode allows concurrent reads while a save is in flight. The busy
	// timeout makes SQLite retry instead of failing on a locked database.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return db, nil
}

// Reopen discards the current connection and recreates the database file.
// Used when the file is deleted out from under the daemon.
func (s *Store) Reopen() error {
	db, err := open(s.cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.db
	oldStmts := s.stmts
	s.db = db
	s.stmts = make(map[string]*sql.Stmt)
	s.mu.Unlock()

	for _, stmt := range oldStmts {
		_ = stmt.Close()
	}
	return old.Close()
}

func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS interviews (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			date       TEXT NOT NULL,
			date_epoch INTEGER NOT NULL,
			report     TEXT NOT NULL DEFAULT '',
			analysis   TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL DEFAULT '',
			stats      TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_interviews_date_epoch
			ON interviews(date_epoch DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// getStmt returns a cached prepared statement, preparing it on first use.
func (s *Store) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	s.mu.RLock()
	stmt, ok := s.stmts[query]
	s.mu.RUnlock()
	if ok {
		return stmt, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// ExecContext executes a query using the statement cache.
func (s *Store) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := s.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

// QueryContext runs a multi-row query using the statement cache.
func (s *Store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	stmt, err := s.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext runs a single-row query using the statement cache.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	stmt, err := s.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryRowContext(ctx, args...), nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	return db.Ping()
}

// Close closes cached statements and the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, stmt := range s.stmts {
		_ = stmt.Close()
	}
	s.stmts = make(map[string]*sql.Stmt)
	db := s.db
	s.mu.Unlock()
	return db.Close()
}
