package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/heart-intake-server/internal/domain"
)

// sqlQuerier is implemented by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLitePatientRepository stores patients in a local SQLite file for
// standalone deployments.
type SQLitePatientRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLitePatientRepository creates a repository over an already migrated database.
func NewSQLitePatientRepository(db *sql.DB, logger *logrus.Logger) *SQLitePatientRepository {
	return &SQLitePatientRepository{
		db:  db,
		log: logger,
	}
}

// InTx runs fn inside a single transaction, committing when fn returns nil.
func (r *SQLitePatientRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.PatientTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.WithError(err).Error("Failed to begin transaction")
		return fmt.Errorf("beginning transaction: %w: %w", domain.ErrStorage, err)
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &sqlitePatientTx{q: tx, log: r.log}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.log.WithError(err).Error("Failed to commit transaction")
		return sqliteWriteError("committing transaction", err)
	}
	return nil
}

// GetByName retrieves a patient by exact name
func (r *SQLitePatientRepository) GetByName(ctx context.Context, name string) (*domain.PatientRecord, error) {
	return sqliteGetByName(ctx, r.db, r.log, name)
}

// List returns every stored patient in id order
func (r *SQLitePatientRepository) List(ctx context.Context) ([]*domain.PatientRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY id`)
	if err != nil {
		r.log.WithError(err).Error("Failed to list patients")
		return nil, fmt.Errorf("listing patients: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var patients []*domain.PatientRecord
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			r.log.WithError(err).Error("Failed to scan patient row")
			return nil, fmt.Errorf("scanning patient row: %w: %w", domain.ErrStorage, err)
		}
		patients = append(patients, patient)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient rows: %w: %w", domain.ErrStorage, err)
	}

	return patients, nil
}

// Ping checks the database connection
func (r *SQLitePatientRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database.
func (r *SQLitePatientRepository) Close() error {
	return r.db.Close()
}

type sqlitePatientTx struct {
	q   sqlQuerier
	log *logrus.Logger
}

func (t *sqlitePatientTx) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"name":  name,
			"error": err,
		}).Error("Failed to check patient existence")
		return false, fmt.Errorf("checking patient existence: %w: %w", domain.ErrStorage, err)
	}
	return exists, nil
}

func (t *sqlitePatientTx) GetByName(ctx context.Context, name string) (*domain.PatientRecord, error) {
	return sqliteGetByName(ctx, t.q, t.log, name)
}

func (t *sqlitePatientTx) Insert(ctx context.Context, record *domain.PatientRecord) error {
	now := time.Now().UTC()

	result, err := t.q.ExecContext(ctx, `
		INSERT INTO patients (
			name, age, sex, chest_pain, resting_blood_pressure, cholesterol,
			fasting_blood_sugar, resting_ecg, max_heart_rate, exercise_induced_angina,
			st_depression, slope, major_vessels, thalassemia, diagnostic, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Name,
		record.Age,
		record.Sex,
		record.CP,
		record.Trestbps,
		record.Chol,
		record.FBS,
		record.RestECG,
		record.Thalach,
		record.Exang,
		record.Oldpeak,
		record.Slope,
		record.CA,
		record.Thal,
		outcomeValue(record.Outcome),
		now,
	)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"name":  record.Name,
			"error": err,
		}).Error("Failed to insert patient")
		return sqliteWriteError("inserting patient", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w: %w", domain.ErrStorage, err)
	}
	record.ID = id
	record.CreatedAt = now

	t.log.WithFields(logrus.Fields{
		"patient_id": record.ID,
		"name":       record.Name,
	}).Debug("Patient row inserted")

	return nil
}

func (t *sqlitePatientTx) Delete(ctx context.Context, id int64) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to delete patient")
		return fmt.Errorf("deleting patient: %w: %w", domain.ErrStorage, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w: %w", domain.ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func sqliteGetByName(ctx context.Context, q sqlQuerier, log *logrus.Logger, name string) (*domain.PatientRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE name = ?`, name)

	patient, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("patient %q: %w", name, domain.ErrNotFound)
		}
		log.WithFields(logrus.Fields{
			"name":  name,
			"error": err,
		}).Error("Failed to get patient by name")
		return nil, fmt.Errorf("getting patient by name: %w: %w", domain.ErrStorage, err)
	}
	return patient, nil
}

func sqliteWriteError(op string, err error) error {
	if isSQLiteUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
