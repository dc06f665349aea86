package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// EnsureSQLiteDir creates the directory holding the SQLite database file.
func EnsureSQLiteDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	return nil
}

// OpenSQLite opens the standalone SQLite database, creating its directory if needed.
// SQLite allows a single writer, so the pool is capped at one connection.
func OpenSQLite(ctx context.Context, path string, logger *logrus.Logger) (*sql.DB, error) {
	if err := EnsureSQLiteDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	logger.WithField("path", path).Info("SQLite database opened")
	return db, nil
}
