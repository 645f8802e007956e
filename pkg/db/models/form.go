package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// Form is an organiser-built questionnaire attached to an event.
type Form struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrganiserID uuid.UUID          `gorm:"column:organiser_id;type:uuid;not null;index"`
	Title       string             `gorm:"column:title;not null"`
	Sections    types.FormSections `gorm:"column:sections;type:jsonb;serializer:json"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
