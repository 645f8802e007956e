package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/enums"
)

// FormsEntityInfo carries the form step state for one ticket.
type FormsEntityInfo struct {
	FormID         uuid.UUID  `json:"formId"`
	EventID        uuid.UUID  `json:"eventId"`
	FormResponseID *uuid.UUID `json:"formResponseId,omitempty"`
}

// StripeEntityInfo carries the hosted checkout state. DelayedStripe entities
// reuse this shape; only the capture mode differs.
type StripeEntityInfo struct {
	URL               string `json:"url,omitempty"`
	CheckoutSessionID string `json:"checkoutSessionId,omitempty"`
}

// WaitlistEntityInfo carries the intended allocation pending list placement.
type WaitlistEntityInfo struct {
	EventID         uuid.UUID  `json:"eventId"`
	TicketCount     int        `json:"ticketCount"`
	WaitlistEntryID *uuid.UUID `json:"waitlistEntryId,omitempty"`
}

// EndEntityInfo carries the terminal redirect for a completed workflow.
type EndEntityInfo struct {
	URL string `json:"url"`
}

// FulfilmentEntityInfo is the polymorphic payload of one fulfilment step.
// Exactly one branch matching Type is populated.
type FulfilmentEntityInfo struct {
	Type     enums.FulfilmentEntityType
	Forms    *FormsEntityInfo
	Stripe   *StripeEntityInfo
	Waitlist *WaitlistEntityInfo
	End      *EndEntityInfo
}

type entityInfoEnvelope struct {
	Type enums.FulfilmentEntityType `json:"type"`

	Forms    *FormsEntityInfo    `json:"forms,omitempty"`
	Stripe   *StripeEntityInfo   `json:"stripe,omitempty"`
	Waitlist *WaitlistEntityInfo `json:"waitlist,omitempty"`
	End      *EndEntityInfo      `json:"end,omitempty"`
}

// MarshalJSON encodes the populated branch alongside its discriminator.
func (f FulfilmentEntityInfo) MarshalJSON() ([]byte, error) {
	if !f.Type.IsValid() {
		return nil, fmt.Errorf("fulfilment entity info: invalid type %q", f.Type)
	}

	env := entityInfoEnvelope{Type: f.Type}
	switch f.Type {
	case enums.FulfilmentEntityTypeForms:
		env.Forms = f.Forms
	case enums.FulfilmentEntityTypeStripe, enums.FulfilmentEntityTypeDelayedStripe:
		env.Stripe = f.Stripe
	case enums.FulfilmentEntityTypeWaitlist:
		env.Waitlist = f.Waitlist
	case enums.FulfilmentEntityTypeEnd:
		env.End = f.End
	}
	return json.Marshal(env)
}

// UnmarshalJSON dispatches on the type discriminator.
func (f *FulfilmentEntityInfo) UnmarshalJSON(data []byte) error {
	var env entityInfoEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if !env.Type.IsValid() {
		return fmt.Errorf("fulfilment entity info: invalid type %q", env.Type)
	}

	*f = FulfilmentEntityInfo{Type: env.Type}
	switch env.Type {
	case enums.FulfilmentEntityTypeForms:
		f.Forms = env.Forms
	case enums.FulfilmentEntityTypeStripe, enums.FulfilmentEntityTypeDelayedStripe:
		f.Stripe = env.Stripe
	case enums.FulfilmentEntityTypeWaitlist:
		f.Waitlist = env.Waitlist
	case enums.FulfilmentEntityTypeEnd:
		f.End = env.End
	}
	return nil
}
