package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// pgQuerier is implemented by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPatientRepository handles patient persistence in PostgreSQL
type PostgresPatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresPatientRepository creates a new patient repository
func NewPostgresPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PostgresPatientRepository {
	return &PostgresPatientRepository{
		db:  db,
		log: logger,
	}
}

// InTx runs fn inside a single transaction, committing when fn returns nil.
func (r *PostgresPatientRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.PatientTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.WithError(err).Error("Failed to begin transaction")
		return fmt.Errorf("beginning transaction: %w: %w", domain.ErrStorage, err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &postgresPatientTx{q: tx, log: r.log}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.WithError(err).Error("Failed to commit transaction")
		return postgresWriteError("committing transaction", err)
	}
	return nil
}

// GetByName retrieves a patient by exact name
func (r *PostgresPatientRepository) GetByName(ctx context.Context, name string) (*domain.PatientRecord, error) {
	return postgresGetByName(ctx, r.db, r.log, name)
}

// List returns every stored patient in id order
func (r *PostgresPatientRepository) List(ctx context.Context) ([]*domain.PatientRecord, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY id`

	rows, err := r.db.Query(ctx, query)
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
func (r *PostgresPatientRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close is a no-op: the pool is owned by database.DB.
func (r *PostgresPatientRepository) Close() error {
	return nil
}

type postgresPatientTx struct {
	q   pgQuerier
	log *logrus.Logger
}

func (t *postgresPatientTx) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"name":  name,
			"error": err,
		}).Error("Failed to check patient existence")
		return false, fmt.Errorf("checking patient existence: %w: %w", domain.ErrStorage, err)
	}
	return exists, nil
}

func (t *postgresPatientTx) GetByName(ctx context.Context, name string) (*domain.PatientRecord, error) {
	return postgresGetByName(ctx, t.q, t.log, name)
}

func (t *postgresPatientTx) Insert(ctx context.Context, record *domain.PatientRecord) error {
	query := `
		INSERT INTO patients (
			name, age, sex, chest_pain, resting_blood_pressure, cholesterol,
			fasting_blood_sugar, resting_ecg, max_heart_rate, exercise_induced_angina,
			st_depression, slope, major_vessels, thalassemia, diagnostic, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		RETURNING id, created_at`

	err := t.q.QueryRow(ctx, query,
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
		time.Now().UTC(),
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		t.log.WithFields(logrus.Fields{
			"name":  record.Name,
			"error": err,
		}).Error("Failed to insert patient")
		return postgresWriteError("inserting patient", err)
	}

	t.log.WithFields(logrus.Fields{
		"patient_id": record.ID,
		"name":       record.Name,
	}).Debug("Patient row inserted")

	return nil
}

func (t *postgresPatientTx) Delete(ctx context.Context, id int64) error {
	result, err := t.q.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to delete patient")
		return fmt.Errorf("deleting patient: %w: %w", domain.ErrStorage, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func postgresGetByName(ctx context.Context, q pgQuerier, log *logrus.Logger, name string) (*domain.PatientRecord, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE name = $1`

	patient, err := scanPatient(q.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

// postgresWriteError maps a failed write: a unique violation on the name is a
// conflict, anything else is a storage failure.
func postgresWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
