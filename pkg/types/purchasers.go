package types

import "github.com/google/uuid"

// Purchaser aggregates the tickets one buyer holds for an event. Keys in
// PurchaserMap are hashed email addresses, not raw ones.
type Purchaser struct {
	Email       string      `json:"email"`
	TicketCount int         `json:"ticketCount"`
	TicketIDs   []uuid.UUID `json:"ticketIds"`
}

// PurchaserMap stores per-buyer ticket aggregates keyed by email hash.
type PurchaserMap map[string]Purchaser
