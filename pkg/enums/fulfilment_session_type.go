package enums

import "fmt"

// FulfilmentSessionType selects which workflow a session runs.
type FulfilmentSessionType string

const (
	// FulfilmentSessionTypeCheckout is the immediate-payment ticket purchase flow.
	FulfilmentSessionTypeCheckout FulfilmentSessionType = "CHECKOUT"
	// FulfilmentSessionTypeBookingApproval defers capture until the organiser approves.
	FulfilmentSessionTypeBookingApproval FulfilmentSessionType = "BOOKING_APPROVAL"
	// FulfilmentSessionTypeWaitlist collects interest for sold-out events.
	FulfilmentSessionTypeWaitlist FulfilmentSessionType = "WAITLIST"
)

var validFulfilmentSessionTypes = []FulfilmentSessionType{
	FulfilmentSessionTypeCheckout,
	FulfilmentSessionTypeBookingApproval,
	FulfilmentSessionTypeWaitlist,
}

// String implements fmt.Stringer.
func (f FulfilmentSessionType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfilmentSessionType.
func (f FulfilmentSessionType) IsValid() bool {
	for _, candidate := range validFulfilmentSessionTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfilmentSessionType converts raw input into a FulfilmentSessionType.
func ParseFulfilmentSessionType(value string) (FulfilmentSessionType, error) {
	for _, candidate := range validFulfilmentSessionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfilment session type %q", value)
}
