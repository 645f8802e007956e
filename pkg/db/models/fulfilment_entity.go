package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/enums"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// FulfilmentEntity is one step inside a fulfilment session. Info is the
// polymorphic payload keyed by Type.
type FulfilmentEntity struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	SessionID uuid.UUID                  `gorm:"column:session_id;type:uuid;not null;index"`
	Type      enums.FulfilmentEntityType `gorm:"column:type;not null"`
	Position  int                        `gorm:"column:position;not null"`
	Info      types.FulfilmentEntityInfo `gorm:"column:info;type:jsonb;serializer:json"`
	Completed bool                       `gorm:"column:completed;not null;default:false"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralisation.
func (FulfilmentEntity) TableName() string {
	return "fulfilment_entities"
}
