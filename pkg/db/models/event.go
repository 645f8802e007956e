package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is an organiser-published sporting event with ticketed capacity.
type Event struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrganiserID          uuid.UUID  `gorm:"column:organiser_id;type:uuid;not null"`
	Name                 string     `gorm:"column:name;not null"`
	Description          *string    `gorm:"column:description"`
	Location             *string    `gorm:"column:location"`
	StartDate            time.Time  `gorm:"column:start_date;not null"`
	EndDate              time.Time  `gorm:"column:end_date;not null"`
	RegistrationDeadline *time.Time `gorm:"column:registration_deadline"`
	PriceCents           int64      `gorm:"column:price_cents;not null"`
	Capacity             int        `gorm:"column:capacity;not null"`
	Vacancy              int        `gorm:"column:vacancy;not null"`
	Published            bool       `gorm:"column:published;not null;default:false"`
	IsPrivate            bool       `gorm:"column:is_private;not null;default:false"`
	PaymentsActive       bool       `gorm:"column:payments_active;not null;default:false"`
	StripeFeeToCustomer  bool       `gorm:"column:stripe_fee_to_customer;not null;default:false"`
	PromoCodesActive     bool       `gorm:"column:promo_codes_active;not null;default:false"`
	PausedBookings       bool       `gorm:"column:paused_bookings;not null;default:false"`
	RequiresApproval     bool       `gorm:"column:requires_approval;not null;default:false"`
	WaitlistEnabled      bool       `gorm:"column:waitlist_enabled;not null;default:false"`
	FormID               *uuid.UUID `gorm:"column:form_id;type:uuid"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// RegistrationOpenAt reports whether tickets can still be bought at the
// given instant. The deadline falls back to the event start.
func (e Event) RegistrationOpenAt(at time.Time) bool {
	deadline := e.StartDate
	if e.RegistrationDeadline != nil {
		deadline = *e.RegistrationDeadline
	}
	return at.Before(deadline)
}

// IsFree reports whether the event costs nothing to attend.
func (e Event) IsFree() bool {
	return e.PriceCents <= 0
}
