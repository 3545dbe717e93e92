package emr

import (
	"context"
	"errors"
	"time"

	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/fhir"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrNoConsent       = errors.New("no consent given")
)

// HealthData is the patient bundle returned to the EMR form.
type HealthData struct {
	Patient      PatientSummary   `json:"patient"`
	Diagnoses    []DiagnosisModel `json:"diagnoses"`
	TotalRecords int              `json:"total_records"`
}

type PatientSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) RegisterPatient(ctx context.Context, req models.RegisterPatientRequest) (*PatientModel, error) {
	patient := &PatientModel{
		ABHA:      req.ABHA,
		Name:      req.Name,
		Consent:   false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SavePatient(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GiveConsent(ctx context.Context, abha string) error {
	patient, err := s.getPatient(ctx, abha)
	if err != nil {
		return err
	}
	patient.Consent = true
	return s.repo.SavePatient(ctx, patient)
}

// SaveDiagnosis stores a dual-coded record. Consent gates every write.
func (s *Service) SaveDiagnosis(ctx context.Context, req models.SaveDiagnosisRequest) (*DiagnosisModel, error) {
	patient, err := s.getPatient(ctx, req.ABHA)
	if err != nil {
		return nil, err
	}
	if !patient.Consent {
		return nil, ErrNoConsent
	}

	diagnosis := &DiagnosisModel{
		ID:         uuid.New().String(),
		ABHA:       req.ABHA,
		Diagnosis:  req.Diagnosis,
		NAMCCode:   req.NAMCCode,
		ICDCode:    req.ICDCode,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveDiagnosis(ctx, diagnosis); err != nil {
		return nil, err
	}
	return diagnosis, nil
}

// GetHealthData returns the consented patient's record bundle.
func (s *Service) GetHealthData(ctx context.Context, abha string) (*HealthData, error) {
	patient, err := s.getPatient(ctx, abha)
	if err != nil {
		return nil, err
	}
	if !patient.Consent {
		return nil, ErrNoConsent
	}

	diagnoses, err := s.repo.ListDiagnoses(ctx, abha)
	if err != nil {
		return nil, err
	}
	return &HealthData{
		Patient:      PatientSummary{ID: patient.ABHA, Name: patient.Name},
		Diagnoses:    diagnoses,
		TotalRecords: len(diagnoses),
	}, nil
}

// GetConditions renders the patient's diagnoses as FHIR Condition resources.
func (s *Service) GetConditions(ctx context.Context, abha string) ([]fhir.Condition, error) {
	data, err := s.GetHealthData(ctx, abha)
	if err != nil {
		return nil, err
	}
	conditions := make([]fhir.Condition, 0, len(data.Diagnoses))
	for _, diagnosis := range data.Diagnoses {
		conditions = append(conditions, fhir.NewCondition(
			diagnosis.ID,
			"Patient/"+diagnosis.ABHA,
			diagnosis.Diagnosis,
			models.CombinedRecord{NAMCCode: diagnosis.NAMCCode, ICDCode: diagnosis.ICDCode},
			diagnosis.RecordedAt,
		))
	}
	return conditions, nil
}

func (s *Service) ListPatients(ctx context.Context, limit int) ([]PatientModel, error) {
	return s.repo.ListPatients(ctx, limit)
}

func (s *Service) getPatient(ctx context.Context, abha string) (*PatientModel, error) {
	patient, err := s.repo.GetPatient(ctx, abha)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return patient, nil
}
