package enums

import "fmt"

// FulfilmentEntityType discriminates the steps inside a fulfilment session.
type FulfilmentEntityType string

const (
	// FulfilmentEntityTypeForms collects attendee form responses for one ticket.
	FulfilmentEntityTypeForms FulfilmentEntityType = "FORMS"
	// FulfilmentEntityTypeStripe hosts an immediate-capture checkout.
	FulfilmentEntityTypeStripe FulfilmentEntityType = "STRIPE"
	// FulfilmentEntityTypeDelayedStripe authorises now and captures on approval.
	FulfilmentEntityTypeDelayedStripe FulfilmentEntityType = "DELAYED_STRIPE"
	// FulfilmentEntityTypeWaitlist records a waitlist signup.
	FulfilmentEntityTypeWaitlist FulfilmentEntityType = "WAITLIST"
	// FulfilmentEntityTypeEnd terminates the workflow and finalises the session.
	FulfilmentEntityTypeEnd FulfilmentEntityType = "END"
)

var validFulfilmentEntityTypes = []FulfilmentEntityType{
	FulfilmentEntityTypeForms,
	FulfilmentEntityTypeStripe,
	FulfilmentEntityTypeDelayedStripe,
	FulfilmentEntityTypeWaitlist,
	FulfilmentEntityTypeEnd,
}

// String implements fmt.Stringer.
func (f FulfilmentEntityType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfilmentEntityType.
func (f FulfilmentEntityType) IsValid() bool {
	for _, candidate := range validFulfilmentEntityTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfilmentEntityType converts raw input into a FulfilmentEntityType.
func ParseFulfilmentEntityType(value string) (FulfilmentEntityType, error) {
	for _, candidate := range validFulfilmentEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfilment entity type %q", value)
}
