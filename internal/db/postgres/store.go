// Package postgres provides the remote saved-interview database shared by
// every device a candidate practices on.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver, registers as "pgx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds remote database configuration.
type Config struct {
	DSN      string          // Postgres connection string
	MaxConns int             // Maximum number of open connections (default: 8)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// Store wraps the GORM connection to the remote database.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// NewStore connects to the remote database through the pgx driver and runs
// migrations. A nil error means the remote side is reachable right now;
// callers still fall back to the local store when later calls fail.
func NewStore(cfg Config) (*Store, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 8
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

// Ping verifies the remote connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// Close closes the remote database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}
