package audit

import (
	"context"
	"time"

	"github.com/ayushsetu/platform/pkg/common/kafka"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Default actor codes used until real practitioner identity is wired in.
const (
	DefaultDoctorID  = "DR987654"
	DefaultPatientID = "PAT123456"
)

// Topic for search-activity events.
const Topic = "terminology.search-activity"

// EntryModel is one audited search or conversion.
type EntryModel struct {
	ID            string            `gorm:"primaryKey;column:id"`
	DoctorID      string            `gorm:"column:doctor_id"`
	PatientID     string            `gorm:"column:patient_id"`
	Activity      string            `gorm:"column:activity"`
	SearchTerm    string            `gorm:"column:search_term"`
	ResultSummary string            `gorm:"column:result_summary"`
	Detail        datatypes.JSONMap `gorm:"column:detail"`
	CreatedAt     time.Time         `gorm:"column:created_at"`
}

func (EntryModel) TableName() string {
	return "search_audit_logs"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&EntryModel{})
}

func (r *Repository) Save(ctx context.Context, entry *EntryModel) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]EntryModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []EntryModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// Service publishes search activity on Kafka; the sink worker persists it.
// Audit failures are logged and swallowed: they must never break the search
// path.
type Service struct {
	producer *kafka.Producer
}

func NewService(producer *kafka.Producer) *Service {
	return &Service{producer: producer}
}

func (s *Service) Record(ctx context.Context, activity, searchTerm, resultSummary string, detail map[string]interface{}) {
	if s.producer == nil {
		return
	}
	payload := map[string]interface{}{
		"doctor_id":      DefaultDoctorID,
		"patient_id":     DefaultPatientID,
		"activity":       activity,
		"search_term":    searchTerm,
		"result_summary": resultSummary,
	}
	for key, value := range detail {
		payload[key] = value
	}
	if err := s.producer.PublishEvent(ctx, activity, "terminology-service", payload); err != nil {
		logger.Log.WithError(err).Warn("Failed to publish audit event")
	}
}

// Sink consumes search-activity events and persists them as audit rows.
type Sink struct {
	consumer *kafka.Consumer
	repo     *Repository
}

func NewSink(consumer *kafka.Consumer, repo *Repository) *Sink {
	return &Sink{consumer: consumer, repo: repo}
}

// Run blocks until the context is cancelled.
func (s *Sink) Run(ctx context.Context) error {
	return s.consumer.Consume(ctx, s.handle)
}

func (s *Sink) handle(ctx context.Context, event models.Event) error {
	entry := &EntryModel{
		ID:            event.ID,
		DoctorID:      stringField(event.Data, "doctor_id"),
		PatientID:     stringField(event.Data, "patient_id"),
		Activity:      event.Type,
		SearchTerm:    stringField(event.Data, "search_term"),
		ResultSummary: stringField(event.Data, "result_summary"),
		Detail:        datatypes.JSONMap(event.Data),
		CreatedAt:     event.Timestamp,
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.repo.Save(ctx, entry)
}

func stringField(data map[string]interface{}, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}
