package models

import (
	"time"

	"github.com/google/uuid"
	dbtypes "github.com/owya490/sportshub-backend/pkg/db/types"
	"github.com/owya490/sportshub-backend/pkg/enums"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// FulfilmentSession is one run of a fulfilment workflow for an event.
// EntityIDs preserves traversal order; entities also carry their position
// so a single entity can be loaded without the whole chain.
type FulfilmentSession struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                   `gorm:"column:event_id;type:uuid;not null;index"`
	Type          enums.FulfilmentSessionType `gorm:"column:type;not null"`
	NumTickets    int                         `gorm:"column:num_tickets;not null"`
	EventSnapshot types.EventSnapshot         `gorm:"column:event_snapshot;type:jsonb;serializer:json"`
	EntityIDs     dbtypes.UUIDArray           `gorm:"column:entity_ids;type:uuid[];not null"`
	CurrentIndex  int                         `gorm:"column:current_index;not null;default:0"`
	Entities      []FulfilmentEntity          `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	CompletedAt   *time.Time                  `gorm:"column:completed_at"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// Completed reports whether the session has already been finalised.
func (s FulfilmentSession) Completed() bool {
	return s.CompletedAt != nil
}
