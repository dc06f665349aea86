package domain

import (
	"context"
)

// Classifier turns a clinical feature vector into a diagnostic label (0 or 1).
type Classifier interface {
	Predict(ctx context.Context, features FeatureVector) (int, error)
	// Name identifies the loaded model for health reporting.
	Name() string
}

// PatientTx is the set of record operations available inside one transaction.
type PatientTx interface {
	ExistsByName(ctx context.Context, name string) (bool, error)
	GetByName(ctx context.Context, name string) (*PatientRecord, error)
	// Insert stores the record and sets its ID. A duplicate name reported by the
	// store's own constraint is returned as ErrConflict.
	Insert(ctx context.Context, record *PatientRecord) error
	Delete(ctx context.Context, id int64) error
}

// PatientRepository is the Record Store. Writes go through InTx; the transaction
// commits when fn returns nil and rolls back otherwise.
type PatientRepository interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx PatientTx) error) error
	GetByName(ctx context.Context, name string) (*PatientRecord, error)
	List(ctx context.Context) ([]*PatientRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetClassifierConfig() *ClassifierConfig
	GetServerConfig() *ServerConfig
	Validate() error
	GetDatabaseURL() string
	IsProduction() bool
}
