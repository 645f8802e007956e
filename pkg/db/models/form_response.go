package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// FormResponse holds one attendee's answers. Responses are written as
// drafts while the workflow runs and promoted to submitted when the
// session completes.
type FormResponse struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	FormID      uuid.UUID         `gorm:"column:form_id;type:uuid;not null;index"`
	EventID     uuid.UUID         `gorm:"column:event_id;type:uuid;not null;index"`
	TicketID    *uuid.UUID        `gorm:"column:ticket_id;type:uuid"`
	Answers     types.FormAnswers `gorm:"column:answers;type:jsonb;serializer:json"`
	Submitted   bool              `gorm:"column:submitted;not null;default:false"`
	SubmittedAt *time.Time        `gorm:"column:submitted_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
