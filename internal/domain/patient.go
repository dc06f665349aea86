// Package domain contains the core entities of the heart diagnosis intake service:
// patient records, the submissions that create them and the outcomes a workflow can
// report.
package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLength is the width of the name column in the patients table.
const MaxNameLength = 50

// FeatureCount is the number of clinical features handed to the classifier.
const FeatureCount = 13

// FeatureNames lists the clinical features in the order the classifier expects them.
var FeatureNames = [FeatureCount]string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

// Diagnostic labels produced by the classifier
const (
	OutcomeNegative = 0
	OutcomePositive = 1
)

// FeatureVector is the fixed 13-dimensional input of the classifier.
type FeatureVector [FeatureCount]float64

// ClinicalFeatures holds the measured and categorical values of one patient.
// No range validation is applied: any value of the declared type is accepted.
type ClinicalFeatures struct {
	Age      int     `json:"age" db:"age"`
	Sex      int     `json:"sex" db:"sex"`
	CP       int     `json:"cp" db:"chest_pain"`
	Trestbps int     `json:"trestbps" db:"resting_blood_pressure"`
	Chol     int     `json:"chol" db:"cholesterol"`
	FBS      int     `json:"fbs" db:"fasting_blood_sugar"`
	RestECG  int     `json:"restecg" db:"resting_ecg"`
	Thalach  int     `json:"thalach" db:"max_heart_rate"`
	Exang    int     `json:"exang" db:"exercise_induced_angina"`
	Oldpeak  float64 `json:"oldpeak" db:"st_depression"`
	Slope    int     `json:"slope" db:"slope"`
	CA       int     `json:"ca" db:"major_vessels"`
	Thal     int     `json:"thal" db:"thalassemia"`
}

// Vector returns the features in classifier order.
func (f ClinicalFeatures) Vector() FeatureVector {
	return FeatureVector{
		float64(f.Age),
		float64(f.Sex),
		float64(f.CP),
		float64(f.Trestbps),
		float64(f.Chol),
		float64(f.FBS),
		float64(f.RestECG),
		float64(f.Thalach),
		float64(f.Exang),
		f.Oldpeak,
		float64(f.Slope),
		float64(f.CA),
		float64(f.Thal),
	}
}

// PatientRecord is the persisted entity. ID is assigned by the store and Outcome is
// computed once at creation; a record is never updated afterwards.
type PatientRecord struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	ClinicalFeatures
	Outcome   *int      `json:"outcome" db:"diagnostic"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// NewPatientRecord builds a record that has not been persisted yet.
func NewPatientRecord(name string, features ClinicalFeatures, outcome int) *PatientRecord {
	return &PatientRecord{
		Name:             name,
		ClinicalFeatures: features,
		Outcome:          &outcome,
	}
}

// PatientSubmission is the intake request. Pointer fields make a missing value
// distinguishable from zero, which is a legitimate value for most features.
type PatientSubmission struct {
	Name     *string  `json:"name" form:"name" binding:"required" jsonschema:"patient name, unique across all records"`
	Age      *int     `json:"age" form:"age" binding:"required" jsonschema:"age in years"`
	Sex      *int     `json:"sex" form:"sex" binding:"required" jsonschema:"sex (1 = male, 0 = female)"`
	CP       *int     `json:"cp" form:"cp" binding:"required" jsonschema:"chest pain type"`
	Trestbps *int     `json:"trestbps" form:"trestbps" binding:"required" jsonschema:"resting blood pressure (mm Hg)"`
	Chol     *int     `json:"chol" form:"chol" binding:"required" jsonschema:"serum cholesterol (mg/dl)"`
	FBS      *int     `json:"fbs" form:"fbs" binding:"required" jsonschema:"fasting blood sugar > 120 mg/dl"`
	RestECG  *int     `json:"restecg" form:"restecg" binding:"required" jsonschema:"resting electrocardiographic results"`
	Thalach  *int     `json:"thalach" form:"thalach" binding:"required" jsonschema:"maximum heart rate achieved"`
	Exang    *int     `json:"exang" form:"exang" binding:"required" jsonschema:"exercise induced angina"`
	Oldpeak  *float64 `json:"oldpeak" form:"oldpeak" binding:"required" jsonschema:"ST depression induced by exercise relative to rest"`
	Slope    *int     `json:"slope" form:"slope" binding:"required" jsonschema:"slope of the peak exercise ST segment"`
	CA       *int     `json:"ca" form:"ca" binding:"required" jsonschema:"number of major vessels colored by fluoroscopy"`
	Thal     *int     `json:"thal" form:"thal" binding:"required" jsonschema:"thalassemia"`
}

// Validate checks that every field is present and that the trimmed name fits the
// store. It returns a *ValidationError for the first offending field.
func (s *PatientSubmission) Validate() error {
	if s == nil {
		return NewValidationError("body", "submission is required", nil)
	}
	if s.Name == nil {
		return NewValidationError("name", "field is required", nil)
	}
	name := strings.TrimSpace(*s.Name)
	if name == "" {
		return NewValidationError("name", "must not be blank", *s.Name)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return NewValidationError("name", "must be at most 50 characters", name)
	}

	required := []struct {
		field   string
		present bool
	}{
		{"age", s.Age != nil},
		{"sex", s.Sex != nil},
		{"cp", s.CP != nil},
		{"trestbps", s.Trestbps != nil},
		{"chol", s.Chol != nil},
		{"fbs", s.FBS != nil},
		{"restecg", s.RestECG != nil},
		{"thalach", s.Thalach != nil},
		{"exang", s.Exang != nil},
		{"oldpeak", s.Oldpeak != nil},
		{"slope", s.Slope != nil},
		{"ca", s.CA != nil},
		{"thal", s.Thal != nil},
	}
	for _, r := range required {
		if !r.present {
			return NewValidationError(r.field, "field is required", nil)
		}
	}
	if math.IsNaN(*s.Oldpeak) || math.IsInf(*s.Oldpeak, 0) {
		return NewValidationError("oldpeak", "must be a finite number", *s.Oldpeak)
	}
	return nil
}

// TrimmedName returns the submitted name without surrounding whitespace.
// Callers must Validate first.
func (s *PatientSubmission) TrimmedName() string {
	return strings.TrimSpace(*s.Name)
}

// Features converts a validated submission into clinical features.
func (s *PatientSubmission) Features() ClinicalFeatures {
	return ClinicalFeatures{
		Age:      *s.Age,
		Sex:      *s.Sex,
		CP:       *s.CP,
		Trestbps: *s.Trestbps,
		Chol:     *s.Chol,
		FBS:      *s.FBS,
		RestECG:  *s.RestECG,
		Thalach:  *s.Thalach,
		Exang:    *s.Exang,
		Oldpeak:  *s.Oldpeak,
		Slope:    *s.Slope,
		CA:       *s.CA,
		Thal:     *s.Thal,
	}
}
