package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/migrations"
)

// MigrationRunner handles database migrations
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner creates a migration runner for databaseURL. When migrationsPath
// is empty the migrations embedded in the binary are used, picked by the URL scheme.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m   *migrate.Migrate
		err error
	)

	if migrationsPath != "" {
		m, err = migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	} else {
		dialect, derr := dialectFromURL(databaseURL)
		if derr != nil {
			return nil, derr
		}
		source, serr := iofs.New(migrations.FS, dialect)
		if serr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", source, databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

func dialectFromURL(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", nil
	default:
		return "", fmt.Errorf("no embedded migrations for database URL scheme")
	}
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	return mr.apply(ctx, "up", mr.migrate.Up)
}

// Down rolls back the most recent migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	return mr.apply(ctx, "down", func() error { return mr.migrate.Steps(-1) })
}

func (mr *MigrationRunner) apply(ctx context.Context, direction string, step func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := mr.log.WithField("direction", direction)
	entry.Info("Applying schema migrations")

	if err := step(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			entry.Info("Schema already current")
			return nil
		}
		return fmt.Errorf("migrating %s: %w", direction, err)
	}

	version, dirty, err := mr.Version()
	if err != nil {
		entry.WithError(err).Warn("Could not read schema version")
		return nil
	}
	entry.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("Schema migrated")
	return nil
}

// Version reports the applied schema version; 0 means no migration has run.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close closes the migration runner
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
