package emr

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PatientModel is one ABHA-registered patient.
type PatientModel struct {
	ABHA      string    `gorm:"primaryKey;column:abha" json:"abha"`
	Name      string    `gorm:"column:name" json:"name"`
	Consent   bool      `gorm:"column:consent" json:"consent"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PatientModel) TableName() string {
	return "patients"
}

// DiagnosisModel is one saved dual-coded diagnosis.
type DiagnosisModel struct {
	ID         string    `gorm:"primaryKey;column:id" json:"id"`
	ABHA       string    `gorm:"column:abha;index" json:"abha"`
	Diagnosis  string    `gorm:"column:diagnosis" json:"diagnosis"`
	NAMCCode   string    `gorm:"column:namc_code" json:"namc_code"`
	ICDCode    string    `gorm:"column:icd_code" json:"icd_code"`
	RecordedAt time.Time `gorm:"column:recorded_at" json:"date"`
}

func (DiagnosisModel) TableName() string {
	return "diagnoses"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PatientModel{}, &DiagnosisModel{})
}

func (r *Repository) SavePatient(ctx context.Context, patient *PatientModel) error {
	return r.db.WithContext(ctx).Save(patient).Error
}

func (r *Repository) GetPatient(ctx context.Context, abha string) (*PatientModel, error) {
	var patient PatientModel
	if err := r.db.WithContext(ctx).First(&patient, "abha = ?", abha).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *Repository) ListPatients(ctx context.Context, limit int) ([]PatientModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var patients []PatientModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&patients).Error
	return patients, err
}

func (r *Repository) SaveDiagnosis(ctx context.Context, diagnosis *DiagnosisModel) error {
	return r.db.WithContext(ctx).Create(diagnosis).Error
}

func (r *Repository) ListDiagnoses(ctx context.Context, abha string) ([]DiagnosisModel, error) {
	var diagnoses []DiagnosisModel
	err := r.db.WithContext(ctx).Where("abha = ?", abha).Order("recorded_at ASC").Find(&diagnoses).Error
	return diagnoses, err
}
