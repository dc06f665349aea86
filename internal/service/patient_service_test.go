package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/heart-intake-server/internal/classifier"
	"github.com/heart-intake-server/internal/database"
	"github.com/heart-intake-server/internal/domain"
	"github.com/heart-intake-server/internal/repository"
)

// MockClassifier is a mock implementation of domain.Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Predict(ctx context.Context, features domain.FeatureVector) (int, error) {
	args := m.Called(ctx, features)
	return args.Int(0), args.Error(1)
}

func (m *MockClassifier) Name() string {
	return "mock-model"
}

// MockPatientTx is a mock implementation of domain.PatientTx
type MockPatientTx struct {
	mock.Mock
}

func (m *MockPatientTx) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockPatientTx) GetByName(ctx context.Context, name string) (*domain.PatientRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatientRecord), args.Error(1)
}

func (m *MockPatientTx) Insert(ctx context.Context, record *domain.PatientRecord) error {
	args := m.Called(ctx, record)
	if args.Error(0) == nil {
		record.ID = 1
	}
	return args.Error(0)
}

func (m *MockPatientTx) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPatientRepository is a mock implementation of domain.PatientRepository.
// InTx returns its first configured error before running fn and its second
// one as the commit result.
type MockPatientRepository struct {
	mock.Mock
	tx *MockPatientTx
}

func (m *MockPatientRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.PatientTx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	if err := fn(ctx, m.tx); err != nil {
		return err
	}
	return args.Error(1)
}

func (m *MockPatientRepository) GetByName(ctx context.Context, name string) (*domain.PatientRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PatientRecord), args.Error(1)
}

func (m *MockPatientRepository) List(ctx context.Context) ([]*domain.PatientRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PatientRecord), args.Error(1)
}

func (m *MockPatientRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPatientRepository) Close() error {
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newMocks() (*MockPatientRepository, *MockPatientTx, *MockClassifier) {
	tx := new(MockPatientTx)
	return &MockPatientRepository{tx: tx}, tx, new(MockClassifier)
}

func ptr[T any](v T) *T {
	return &v
}

func aliceSubmission() *domain.PatientSubmission {
	return &domain.PatientSubmission{
		Name:     ptr("Alice"),
		Age:      ptr(45),
		Sex:      ptr(1),
		CP:       ptr(2),
		Trestbps: ptr(130),
		Chol:     ptr(250),
		FBS:      ptr(0),
		RestECG:  ptr(1),
		Thalach:  ptr(150),
		Exang:    ptr(0),
		Oldpeak:  ptr(1.0),
		Slope:    ptr(1),
		CA:       ptr(0),
		Thal:     ptr(2),
	}
}

func TestPatientService_Create(t *testing.T) {
	repo, tx, clf := newMocks()
	sub := aliceSubmission()
	sub.Name = ptr("  Alice \t")

	clf.On("Predict", mock.Anything, sub.Features().Vector()).Return(domain.OutcomePositive, nil).Once()
	repo.On("InTx", mock.Anything).Return(nil, nil)
	tx.On("ExistsByName", mock.Anything, "Alice").Return(false, nil)
	tx.On("Insert", mock.Anything, mock.MatchedBy(func(r *domain.PatientRecord) bool {
		return r.Name == "Alice" && r.Outcome != nil && *r.Outcome == domain.OutcomePositive
	})).Return(nil)

	svc := NewPatientService(repo, clf, quietLogger())
	record, err := svc.Create(context.Background(), sub)

	require.NoError(t, err)
	assert.Equal(t, int64(1), record.ID)
	assert.Equal(t, "Alice", record.Name)
	assert.Equal(t, 45, record.Age)
	require.NotNil(t, record.Outcome)
	assert.Equal(t, domain.OutcomePositive, *record.Outcome)

	clf.AssertExpectations(t)
	repo.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestPatientService_Create_MalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.PatientSubmission)
	}{
		{"missing name", func(s *domain.PatientSubmission) { s.Name = nil }},
		{"blank name", func(s *domain.PatientSubmission) { s.Name = ptr("   ") }},
		{"missing oldpeak", func(s *domain.PatientSubmission) { s.Oldpeak = nil }},
		{"missing thal", func(s *domain.PatientSubmission) { s.Thal = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, clf := newMocks()
			sub := aliceSubmission()
			tt.mutate(sub)

			svc := NewPatientService(repo, clf, quietLogger())
			_, err := svc.Create(context.Background(), sub)

			assert.ErrorIs(t, err, domain.ErrMalformedInput)
			clf.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "InTx", mock.Anything)
		})
	}
}

func TestPatientService_Create_ExistingNameIsConflict(t *testing.T) {
	repo, tx, clf := newMocks()

	clf.On("Predict", mock.Anything, mock.Anything).Return(domain.OutcomeNegative, nil)
	repo.On("InTx", mock.Anything).Return(nil, nil)
	tx.On("ExistsByName", mock.Anything, "Alice").Return(true, nil)

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.Create(context.Background(), aliceSubmission())

	assert.ErrorIs(t, err, domain.ErrConflict)
	tx.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestPatientService_Create_StoreUniqueViolationIsConflict(t *testing.T) {
	repo, tx, clf := newMocks()

	clf.On("Predict", mock.Anything, mock.Anything).Return(domain.OutcomeNegative, nil)
	repo.On("InTx", mock.Anything).Return(nil, nil)
	tx.On("ExistsByName", mock.Anything, "Alice").Return(false, nil)
	tx.On("Insert", mock.Anything, mock.Anything).
		Return(errors.Join(domain.ErrConflict, errors.New("duplicate key value violates unique constraint")))

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.Create(context.Background(), aliceSubmission())

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NotErrorIs(t, err, domain.ErrStorage)
}

func TestPatientService_Create_ClassificationFailure(t *testing.T) {
	repo, _, clf := newMocks()
	clf.On("Predict", mock.Anything, mock.Anything).Return(0, errors.New("model server unavailable"))

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.Create(context.Background(), aliceSubmission())

	assert.ErrorIs(t, err, domain.ErrClassification)
	repo.AssertNotCalled(t, "InTx", mock.Anything)
}

func TestPatientService_Create_StorageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(repo *MockPatientRepository, tx *MockPatientTx)
	}{
		{
			name: "begin fails",
			setup: func(repo *MockPatientRepository, tx *MockPatientTx) {
				repo.On("InTx", mock.Anything).Return(errors.New("connection refused"), nil)
			},
		},
		{
			name: "insert fails",
			setup: func(repo *MockPatientRepository, tx *MockPatientTx) {
				repo.On("InTx", mock.Anything).Return(nil, nil)
				tx.On("ExistsByName", mock.Anything, "Alice").Return(false, nil)
				tx.On("Insert", mock.Anything, mock.Anything).Return(errors.Join(domain.ErrStorage, errors.New("disk full")))
			},
		},
		{
			name: "commit fails",
			setup: func(repo *MockPatientRepository, tx *MockPatientTx) {
				repo.On("InTx", mock.Anything).Return(nil, errors.New("could not serialize access"))
				tx.On("ExistsByName", mock.Anything, "Alice").Return(false, nil)
				tx.On("Insert", mock.Anything, mock.Anything).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, tx, clf := newMocks()
			clf.On("Predict", mock.Anything, mock.Anything).Return(domain.OutcomeNegative, nil)
			tt.setup(repo, tx)

			svc := NewPatientService(repo, clf, quietLogger())
			record, err := svc.Create(context.Background(), aliceSubmission())

			assert.Nil(t, record)
			assert.ErrorIs(t, err, domain.ErrStorage)
			assert.NotErrorIs(t, err, domain.ErrConflict)
		})
	}
}

func TestPatientService_Get(t *testing.T) {
	repo, _, clf := newMocks()
	stored := domain.NewPatientRecord("Alice", aliceSubmission().Features(), domain.OutcomeNegative)
	stored.ID = 4

	repo.On("GetByName", mock.Anything, "Alice").Return(stored, nil)
	repo.On("GetByName", mock.Anything, "alice").Return(nil, domain.ErrNotFound)
	repo.On("GetByName", mock.Anything, "Broken").Return(nil, errors.New("bad connection"))

	svc := NewPatientService(repo, clf, quietLogger())

	record, err := svc.Get(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, stored, record)

	_, err = svc.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), "Broken")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestPatientService_List(t *testing.T) {
	repo, _, clf := newMocks()
	first := domain.NewPatientRecord("Alice", aliceSubmission().Features(), 1)
	second := domain.NewPatientRecord("Bob", aliceSubmission().Features(), 0)
	repo.On("List", mock.Anything).Return([]*domain.PatientRecord{first, second}, nil)

	svc := NewPatientService(repo, clf, quietLogger())
	records, err := svc.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []*domain.PatientRecord{first, second}, records)
}

func TestPatientService_List_Empty(t *testing.T) {
	repo, _, clf := newMocks()
	repo.On("List", mock.Anything).Return([]*domain.PatientRecord{}, nil)

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.List(context.Background())

	assert.ErrorIs(t, err, domain.ErrEmptyCollection)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestPatientService_List_StorageFailure(t *testing.T) {
	repo, _, clf := newMocks()
	repo.On("List", mock.Anything).Return(nil, errors.New("relation \"patients\" does not exist"))

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.List(context.Background())

	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestPatientService_Delete(t *testing.T) {
	repo, tx, clf := newMocks()
	stored := domain.NewPatientRecord("Alice", aliceSubmission().Features(), 1)
	stored.ID = 9

	repo.On("InTx", mock.Anything).Return(nil, nil)
	tx.On("GetByName", mock.Anything, "Alice").Return(stored, nil).Once()
	tx.On("Delete", mock.Anything, int64(9)).Return(nil).Once()

	svc := NewPatientService(repo, clf, quietLogger())
	message, err := svc.Delete(context.Background(), "Alice")

	require.NoError(t, err)
	assert.Equal(t, "Patient Alice removed successfully", message)
	tx.AssertExpectations(t)
}

func TestPatientService_Delete_NotFound(t *testing.T) {
	repo, tx, clf := newMocks()
	repo.On("InTx", mock.Anything).Return(nil, nil)
	tx.On("GetByName", mock.Anything, "Nobody").Return(nil, domain.ErrNotFound)

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.Delete(context.Background(), "Nobody")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	tx.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestPatientService_Delete_StorageFailure(t *testing.T) {
	repo, tx, clf := newMocks()
	stored := domain.NewPatientRecord("Alice", aliceSubmission().Features(), 1)
	stored.ID = 3

	repo.On("InTx", mock.Anything).Return(nil, nil)
	tx.On("GetByName", mock.Anything, "Alice").Return(stored, nil)
	tx.On("Delete", mock.Anything, int64(3)).Return(errors.New("lock timeout"))

	svc := NewPatientService(repo, clf, quietLogger())
	_, err := svc.Delete(context.Background(), "Alice")

	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestPatientService_HealthAccessors(t *testing.T) {
	repo, _, clf := newMocks()
	repo.On("Ping", mock.Anything).Return(nil)

	svc := NewPatientService(repo, clf, quietLogger())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, "mock-model", svc.ModelName())
}

// TestPatientService_AliceLifecycle runs the full intake scenario against a real
// SQLite store and the shipped model.
func TestPatientService_AliceLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := quietLogger()
	dbPath := filepath.Join(t.TempDir(), "patients.db")

	runner, err := database.NewMigrationRunner("sqlite://"+dbPath, "", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.OpenSQLite(ctx, dbPath, logger)
	require.NoError(t, err)
	repo := repository.NewSQLitePatientRepository(db, logger)
	defer repo.Close()

	model, err := classifier.LoadModel("../../ml_model/heart_attack_model.json")
	require.NoError(t, err)

	svc := NewPatientService(repo, model, logger)

	_, err = svc.List(ctx)
	assert.ErrorIs(t, err, domain.ErrEmptyCollection)

	created, err := svc.Create(ctx, aliceSubmission())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	require.NotNil(t, created.Outcome)
	assert.Contains(t, []int{domain.OutcomeNegative, domain.OutcomePositive}, *created.Outcome)

	_, err = svc.Create(ctx, aliceSubmission())
	assert.ErrorIs(t, err, domain.ErrConflict)

	fetched, err := svc.Get(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.ClinicalFeatures, fetched.ClinicalFeatures)
	assert.Equal(t, *created.Outcome, *fetched.Outcome)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	message, err := svc.Delete(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Patient Alice removed successfully", message)

	_, err = svc.Delete(ctx, "Alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
