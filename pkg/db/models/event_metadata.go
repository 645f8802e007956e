package models

import (
	"time"

	"github.com/google/uuid"
	dbtypes "github.com/owya490/sportshub-backend/pkg/db/types"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// EventMetadata is the per-event fulfilment ledger. The completed checkout
// session list is the source of truth for webhook idempotency and is only
// ever read and appended inside the fulfilment transaction.
type EventMetadata struct {
	EventID                     uuid.UUID           `gorm:"column:event_id;type:uuid;primaryKey"`
	Purchasers                  types.PurchaserMap  `gorm:"column:purchasers;type:jsonb;serializer:json"`
	OrderIDs                    dbtypes.UUIDArray   `gorm:"column:order_ids;type:uuid[]"`
	CompletedCheckoutSessionIDs dbtypes.StringArray `gorm:"column:completed_checkout_session_ids;type:text[]"`
	CompleteTicketCount         int                 `gorm:"column:complete_ticket_count;not null;default:0"`
	CreatedAt                   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralisation.
func (EventMetadata) TableName() string {
	return "event_metadata"
}
