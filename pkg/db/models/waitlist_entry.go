package models

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry records interest in a sold-out event.
type WaitlistEntry struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	EventID   uuid.UUID `gorm:"column:event_id;type:uuid;not null;index"`
	Email     string    `gorm:"column:email;not null"`
	FullName  string    `gorm:"column:full_name;not null"`
	Phone     string    `gorm:"column:phone"`
	Notified  bool      `gorm:"column:notified;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
