package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/enums"
)

// Ticket is one attendee place on an event. Status always mirrors the
// owning order's status after any transition.
type Ticket struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	EventID        uuid.UUID         `gorm:"column:event_id;type:uuid;not null;index"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Email          string            `gorm:"column:email;not null"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	PriceCents     int64             `gorm:"column:price_cents;not null;default:0"`
	PurchasedAt    time.Time         `gorm:"column:purchased_at;not null"`
	FormResponseID *uuid.UUID        `gorm:"column:form_response_id;type:uuid"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
