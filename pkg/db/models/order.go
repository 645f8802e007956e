package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/enums"
)

// Order groups the tickets bought in one checkout. Orders created through
// the booking approval flow stay PENDING until the organiser decides.
type Order struct {
	ID                      uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	EventID                 uuid.UUID         `gorm:"column:event_id;type:uuid;not null;index"`
	Email                   string            `gorm:"column:email;not null"`
	FullName                string            `gorm:"column:full_name"`
	Phone                   string            `gorm:"column:phone"`
	Status                  enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	AmountCents             int64             `gorm:"column:amount_cents;not null;default:0"`
	StripeCheckoutSessionID *string           `gorm:"column:stripe_checkout_session_id;uniqueIndex"`
	StripePaymentIntentID   *string           `gorm:"column:stripe_payment_intent_id"`
	DatePurchased           time.Time         `gorm:"column:date_purchased;not null"`
	DecidedAt               *time.Time        `gorm:"column:decided_at"`
	Tickets                 []Ticket          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt               time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
