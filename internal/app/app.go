// Package app wires configuration, storage and the classifier into the patient
// workflows shared by every binary.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/classifier"
	"github.com/heart-intake-server/internal/database"
	"github.com/heart-intake-server/internal/domain"
	"github.com/heart-intake-server/internal/repository"
	"github.com/heart-intake-server/internal/service"
)

// Runtime holds the long-lived dependencies of a running process.
type Runtime struct {
	Config     domain.ConfigManager
	Logger     *logrus.Logger
	Store      domain.PatientRepository
	Classifier domain.Classifier
	Patients   *service.PatientService

	closers []func()
}

// Open runs pending migrations when configured, opens the record store and loads
// the classifier. Call Close when done.
func Open(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config: configManager,
		Logger: logger,
	}

	if configManager.GetDatabaseConfig().AutoMigrate {
		if err := Migrate(ctx, configManager, logger); err != nil {
			return nil, err
		}
	}

	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	predictor, err := OpenClassifier(ctx, configManager, logger, rt.onClose)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Classifier = predictor

	rt.Patients = service.NewPatientService(rt.Store, rt.Classifier, logger)
	return rt, nil
}

// Migrate applies all pending migrations to the configured database.
func Migrate(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) error {
	dbConfig := configManager.GetDatabaseConfig()
	if dbConfig.Driver == domain.DriverSQLite {
		if err := database.EnsureSQLiteDir(dbConfig.SQLitePath); err != nil {
			return err
		}
	}

	runner, err := database.NewMigrationRunner(
		configManager.GetDatabaseURL(),
		dbConfig.MigrationsPath,
		logger,
	)
	if err != nil {
		return err
	}
	defer runner.Close()

	return runner.Up(ctx)
}

// OpenClassifier builds the configured classifier. When the shared cache is enabled
// the Redis client is registered with onClose.
func OpenClassifier(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger, onClose func(func())) (domain.Classifier, error) {
	cfg := configManager.GetConfig()

	var rdb *redis.Client
	if cfg.Cache.Enabled {
		client, err := classifier.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		onClose(func() { client.Close() })
		rdb = client
	}

	return classifier.New(*configManager.GetClassifierConfig(), cfg.Cache, rdb, logger)
}

func (rt *Runtime) openStore(ctx context.Context) error {
	dbConfig := rt.Config.GetDatabaseConfig()

	switch dbConfig.Driver {
	case domain.DriverSQLite:
		db, err := database.OpenSQLite(ctx, dbConfig.SQLitePath, rt.Logger)
		if err != nil {
			return err
		}
		rt.Store = repository.NewSQLitePatientRepository(db, rt.Logger)
		rt.onClose(func() { rt.Store.Close() })
	case domain.DriverPostgres:
		db, err := database.NewConnection(ctx, database.ConfigFromDomain(dbConfig), rt.Logger)
		if err != nil {
			return err
		}
		rt.Store = repository.NewPostgresPatientRepository(db.Pool, rt.Logger)
		rt.onClose(db.Close)
	default:
		return fmt.Errorf("unsupported database driver: %s", dbConfig.Driver)
	}
	return nil
}

func (rt *Runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
