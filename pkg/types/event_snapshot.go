package types

import (
	"time"

	"github.com/google/uuid"
)

// EventSnapshot freezes the event attributes a fulfilment session depends
// on at session start. Later event edits never touch an in-flight session.
type EventSnapshot struct {
	EventID              uuid.UUID  `json:"eventId"`
	OrganiserID          uuid.UUID  `json:"organiserId"`
	Name                 string     `json:"name"`
	PriceCents           int64      `json:"priceCents"`
	CapacityAtReserve    int        `json:"capacityAtReserve"`
	IsPrivate            bool       `json:"isPrivate"`
	StripeFeeToCustomer  bool       `json:"stripeFeeToCustomer"`
	PromoCodesActive     bool       `json:"promoCodesActive"`
	FormID               *uuid.UUID `json:"formId,omitempty"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
}
