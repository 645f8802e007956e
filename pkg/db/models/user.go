package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account, organiser or attendee.
type User struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email               string    `gorm:"column:email;not null;uniqueIndex"`
	FirstName           string    `gorm:"column:first_name;not null"`
	LastName            string    `gorm:"column:last_name"`
	StripeAccountID     *string   `gorm:"column:stripe_account_id"`
	StripeAccountActive bool      `gorm:"column:stripe_account_active;not null;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
