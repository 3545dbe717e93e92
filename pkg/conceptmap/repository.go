package conceptmap

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ElementModel persists one concept map element with its targets as a JSON
// column.
type ElementModel struct {
	NAMCCode  string                       `gorm:"primaryKey;column:namc_code"`
	Display   string                       `gorm:"column:display"`
	Targets   datatypes.JSONType[[]Target] `gorm:"column:targets"`
	UpdatedAt time.Time                    `gorm:"column:updated_at"`
}

func (ElementModel) TableName() string {
	return "concept_map_elements"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ElementModel{})
}

// UpsertElements replaces stored targets for every element, keyed by NAMC
// code. The map builder calls this after each full run.
func (r *Repository) UpsertElements(ctx context.Context, elements []Element) error {
	if len(elements) == 0 {
		return nil
	}
	rows := make([]ElementModel, 0, len(elements))
	now := time.Now().UTC()
	for _, element := range elements {
		rows = append(rows, ElementModel{
			NAMCCode:  element.Code,
			Display:   element.Display,
			Targets:   datatypes.NewJSONType(element.Target),
			UpdatedAt: now,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namc_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"display", "targets", "updated_at"}),
	}).CreateInBatches(rows, 200).Error
}

// LoadAll hydrates an in-memory Map from the stored elements.
func (r *Repository) LoadAll(ctx context.Context) (*Map, error) {
	var rows []ElementModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(rows))
	for _, row := range rows {
		elements = append(elements, Element{
			Code:    row.NAMCCode,
			Display: row.Display,
			Target:  row.Targets.Data(),
		})
	}
	return NewMap(elements), nil
}
