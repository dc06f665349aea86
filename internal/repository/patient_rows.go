package repository

import (
	"database/sql"

	"github.com/heart-intake-server/internal/domain"
)

// patientColumns is the select list shared by every patient query.
const patientColumns = `id, name, age, sex, chest_pain, resting_blood_pressure, cholesterol,
	fasting_blood_sugar, resting_ecg, max_heart_rate, exercise_induced_angina,
	st_depression, slope, major_vessels, thalassemia, diagnostic, created_at`

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(s scanner) (*domain.PatientRecord, error) {
	var (
		record  domain.PatientRecord
		outcome sql.NullInt64
	)

	err := s.Scan(
		&record.ID,
		&record.Name,
		&record.Age,
		&record.Sex,
		&record.CP,
		&record.Trestbps,
		&record.Chol,
		&record.FBS,
		&record.RestECG,
		&record.Thalach,
		&record.Exang,
		&record.Oldpeak,
		&record.Slope,
		&record.CA,
		&record.Thal,
		&outcome,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if outcome.Valid {
		v := int(outcome.Int64)
		record.Outcome = &v
	}
	return &record, nil
}

// outcomeValue converts the optional outcome for a nullable column.
func outcomeValue(outcome *int) sql.NullInt64 {
	if outcome == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*outcome), Valid: true}
}
