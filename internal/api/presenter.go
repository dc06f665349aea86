package api

import (
	"github.com/heart-intake-server/internal/domain"
)

// PatientView is the wire projection of a patient record. Field order is part of
// the response contract.
type PatientView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Age      int     `json:"age"`
	Sex      int     `json:"sex"`
	CP       int     `json:"cp"`
	Trestbps int     `json:"trestbps"`
	Chol     int     `json:"chol"`
	FBS      int     `json:"fbs"`
	RestECG  int     `json:"restecg"`
	Thalach  int     `json:"thalach"`
	Exang    int     `json:"exang"`
	Oldpeak  float64 `json:"oldpeak"`
	Slope    int     `json:"slope"`
	CA       int     `json:"ca"`
	Thal     int     `json:"thal"`
	Outcome  *int    `json:"outcome"`
}

// PatientListView wraps a list of patients.
type PatientListView struct {
	Patients []PatientView `json:"patients"`
}

// DeletedView confirms a delete.
type DeletedView struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// PresentPatient projects one record.
func PresentPatient(p *domain.PatientRecord) PatientView {
	return PatientView{
		ID:       p.ID,
		Name:     p.Name,
		Age:      p.Age,
		Sex:      p.Sex,
		CP:       p.CP,
		Trestbps: p.Trestbps,
		Chol:     p.Chol,
		FBS:      p.FBS,
		RestECG:  p.RestECG,
		Thalach:  p.Thalach,
		Exang:    p.Exang,
		Oldpeak:  p.Oldpeak,
		Slope:    p.Slope,
		CA:       p.CA,
		Thal:     p.Thal,
		Outcome:  p.Outcome,
	}
}

// PresentPatients projects records element-wise, keeping their order.
func PresentPatients(records []*domain.PatientRecord) PatientListView {
	views := make([]PatientView, 0, len(records))
	for _, r := range records {
		views = append(views, PresentPatient(r))
	}
	return PatientListView{Patients: views}
}
