// Package store persists operator accounts and calibration sessions in
// SQLite or MySQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql" // MySQL driver.
	_ "modernc.org/sqlite"             // SQLite driver.
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Store wraps database access for accounts and sessions.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens the database and applies migrations. For SQLite, dsn is a file
// path whose directory is created if missing.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One writer at a time for the embedded database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", driver, err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	autoID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverMySQL {
		autoID = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + autoID + `,
			username VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			accessibility_challenge TEXT,
			height REAL,
			weight REAL,
			eye_color TEXT,
			ipd REAL,
			astigmatism VARCHAR(8),
			disabilities TEXT,
			gender TEXT,
			birthdate VARCHAR(10)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			started_at VARCHAR(40) NOT NULL,
			ended_at VARCHAR(40) NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			accuracy REAL NOT NULL,
			exact_accuracy REAL NOT NULL,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS session_predictions (
			session_id VARCHAR(64) NOT NULL,
			step INTEGER NOT NULL,
			capture_id VARCHAR(128) NOT NULL,
			expected INTEGER NOT NULL,
			predicted INTEGER NOT NULL,
			confidence REAL NOT NULL,
			captured_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (session_id, step)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
