package emails

import (
	"context"
	"fmt"

	"github.com/owya490/sportshub-backend/pkg/logger"
)

// ReceiptEmail carries everything needed to confirm a purchase.
type ReceiptEmail struct {
	To          string
	FullName    string
	EventName   string
	TicketCount int
	AmountCents int64
	OrderID     string
}

// DecisionEmail notifies a purchaser about a booking approval outcome.
type DecisionEmail struct {
	To        string
	FullName  string
	EventName string
	Approved  bool
	OrderID   string
}

// Sender delivers transactional email. Delivery is best effort; callers
// never roll back committed work because an email failed.
type Sender interface {
	SendReceipt(ctx context.Context, email ReceiptEmail) error
	SendDecision(ctx context.Context, email DecisionEmail) error
}

// LogSender writes email intents to the log instead of delivering them.
// Used in development and as a fallback when no API key is configured.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender builds a log-only sender.
func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) SendReceipt(ctx context.Context, email ReceiptEmail) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"to":           email.To,
		"event_name":   email.EventName,
		"ticket_count": email.TicketCount,
		"order_id":     email.OrderID,
	})
	s.logg.Info(logCtx, "receipt email suppressed (log sender)")
	return nil
}

func (s *LogSender) SendDecision(ctx context.Context, email DecisionEmail) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"to":       email.To,
		"approved": email.Approved,
		"order_id": email.OrderID,
	})
	s.logg.Info(logCtx, "decision email suppressed (log sender)")
	return nil
}
