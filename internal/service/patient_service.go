package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/domain"
	"github.com/heart-intake-server/internal/metrics"
)

// PatientService implements the intake, query and delete workflows on top of an
// injected record store and an already loaded classifier.
type PatientService struct {
	repo       domain.PatientRepository
	classifier domain.Classifier
	logger     *logrus.Logger
}

// NewPatientService creates a new patient service
func NewPatientService(repo domain.PatientRepository, classifier domain.Classifier, logger *logrus.Logger) *PatientService {
	return &PatientService{
		repo:       repo,
		classifier: classifier,
		logger:     logger,
	}
}

// Create validates a submission, classifies it once and stores the resulting record.
// The existence check and insert share one transaction; a duplicate name detected
// by either is reported as domain.ErrConflict and nothing is written.
func (s *PatientService) Create(ctx context.Context, submission *domain.PatientSubmission) (*domain.PatientRecord, error) {
	if err := submission.Validate(); err != nil {
		s.logger.WithError(err).Warn("Rejected malformed patient submission")
		metrics.RecordIntake(metrics.IntakeMalformed)
		return nil, err
	}

	name := submission.TrimmedName()
	features := submission.Features()

	outcome, err := s.classifier.Predict(ctx, features.Vector())
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"name":  name,
			"model": s.classifier.Name(),
			"error": err,
		}).Error("Failed to classify patient")
		metrics.RecordIntake(metrics.IntakeClassification)
		return nil, fmt.Errorf("classifying patient: %w: %w", domain.ErrClassification, err)
	}

	record := domain.NewPatientRecord(name, features, outcome)

	err = s.repo.InTx(ctx, func(ctx context.Context, tx domain.PatientTx) error {
		exists, err := tx.ExistsByName(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("patient %q: %w", name, domain.ErrConflict)
		}
		return tx.Insert(ctx, record)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.WithField("name", name).Warn("Patient with the same name already exists")
			metrics.RecordIntake(metrics.IntakeConflict)
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"name":  name,
			"error": err,
		}).Error("Failed to save patient")
		metrics.RecordIntake(metrics.IntakeStorage)
		return nil, asStorageError("saving patient", err)
	}

	metrics.RecordIntake(metrics.IntakeCreated)
	metrics.RecordPrediction(outcome)
	s.logger.WithFields(logrus.Fields{
		"patient_id": record.ID,
		"name":       record.Name,
		"outcome":    outcome,
	}).Info("Patient added")

	return record, nil
}

// Get returns the patient stored under exactly name.
func (s *PatientService) Get(ctx context.Context, name string) (*domain.PatientRecord, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "field is required", nil)
	}

	record, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithField("name", name).Warn("Patient not found")
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"name":  name,
			"error": err,
		}).Error("Failed to get patient")
		return nil, asStorageError("getting patient", err)
	}

	s.logger.WithField("name", name).Debug("Patient found")
	return record, nil
}

// List returns every patient in store order, or domain.ErrEmptyCollection when
// nothing is stored.
func (s *PatientService) List(ctx context.Context) ([]*domain.PatientRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list patients")
		return nil, asStorageError("listing patients", err)
	}

	if len(records) == 0 {
		s.logger.Warn("No patients stored")
		return nil, domain.ErrEmptyCollection
	}

	s.logger.WithField("count", len(records)).Debug("Patients found")
	return records, nil
}

// Delete removes the patient stored under exactly name and returns a confirmation.
func (s *PatientService) Delete(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", domain.NewValidationError("name", "field is required", nil)
	}

	err := s.repo.InTx(ctx, func(ctx context.Context, tx domain.PatientTx) error {
		record, err := tx.GetByName(ctx, name)
		if err != nil {
			return err
		}
		return tx.Delete(ctx, record.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithField("name", name).Warn("Patient to delete not found")
			return "", err
		}
		s.logger.WithFields(logrus.Fields{
			"name":  name,
			"error": err,
		}).Error("Failed to delete patient")
		return "", asStorageError("deleting patient", err)
	}

	s.logger.WithField("name", name).Info("Patient removed")
	return DeletedMessage(name), nil
}

// Ping checks that the record store is reachable.
func (s *PatientService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// ModelName identifies the loaded classifier.
func (s *PatientService) ModelName() string {
	return s.classifier.Name()
}

// DeletedMessage is the confirmation returned by a successful delete.
func DeletedMessage(name string) string {
	return fmt.Sprintf("Patient %s removed successfully", name)
}

// asStorageError makes sure an unexpected persistence error carries ErrStorage.
func asStorageError(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
