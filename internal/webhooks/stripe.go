package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/emails"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/internal/tickets"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/metrics"
	"github.com/owya490/sportshub-backend/pkg/security"
	"github.com/owya490/sportshub-backend/pkg/types"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"gorm.io/gorm"
)

// Metadata keys mirrored from checkout session creation.
const (
	metaEventID                   = "eventId"
	metaQuantity                  = "quantity"
	metaCompleteFulfilmentSession = "completeFulfilmentSession"
	metaFulfilmentSessionID       = "fulfilmentSessionId"
	metaEndFulfilmentEntityID     = "endFulfilmentEntityId"

	customFieldFullName = "attendeeFullName"
	customFieldPhone    = "attendeePhone"

	guardScope = "stripe_webhook"
	guardTTL   = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// sessionCompleter is the slice of the fulfilment engine the processor
// needs for its post-commit side effect.
type sessionCompleter interface {
	Complete(ctx context.Context, sessionID, entityID uuid.UUID) error
}

// deliveryGuard is the redis fast-path that drops duplicate deliveries
// before they reach the database. The ledger inside the transaction
// remains the source of truth.
type deliveryGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

// Service consumes signed, at-least-once payment notifications and applies
// them exactly once.
type Service interface {
	VerifyAndParse(payload []byte, signature string) (stripe.Event, error)
	HandleEvent(ctx context.Context, event stripe.Event) error
}

type service struct {
	tx            txRunner
	eventsRepo    events.Repository
	ticketsRepo   tickets.Repository
	sessions      sessionCompleter
	sender        emails.Sender
	guard         deliveryGuard
	metrics       *metrics.WebhookMetrics
	logg          *logger.Logger
	signingSecret string
}

// NewService builds the webhook processor.
func NewService(
	tx txRunner,
	eventsRepo events.Repository,
	ticketsRepo tickets.Repository,
	sessions sessionCompleter,
	sender emails.Sender,
	guard deliveryGuard,
	webhookMetrics *metrics.WebhookMetrics,
	logg *logger.Logger,
	signingSecret string,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if eventsRepo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if ticketsRepo == nil {
		return nil, fmt.Errorf("tickets repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("fulfilment completer required")
	}
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if signingSecret == "" {
		return nil, fmt.Errorf("webhook signing secret required")
	}
	return &service{
		tx:            tx,
		eventsRepo:    eventsRepo,
		ticketsRepo:   ticketsRepo,
		sessions:      sessions,
		sender:        sender,
		guard:         guard,
		metrics:       webhookMetrics,
		logg:          logg,
		signingSecret: signingSecret,
	}, nil
}

// VerifyAndParse checks the payload signature before anything else.
// Unsigned or malformed payloads are rejected with no side effects.
func (s *service) VerifyAndParse(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature verification failed")
	}
	return event, nil
}

func (s *service) HandleEvent(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionExpired:
	default:
		// Unsubscribed event types are acknowledged and dropped.
		return nil
	}

	if dup, err := s.markDelivery(ctx, event.ID); err != nil {
		s.logg.Warn(ctx, "webhook delivery guard unavailable, relying on ledger")
	} else if dup {
		s.metrics.IncDuplicate(eventType)
		return nil
	}

	var checkoutSession stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
		s.metrics.IncFailed(eventType)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding checkout session payload")
	}

	var err error
	var duplicate bool
	if event.Type == stripe.EventTypeCheckoutSessionCompleted {
		duplicate, err = s.handleCompleted(ctx, &checkoutSession)
	} else {
		duplicate, err = s.handleExpired(ctx, &checkoutSession)
	}
	if err != nil {
		s.metrics.IncFailed(eventType)
		s.releaseDelivery(ctx, event.ID)
		return err
	}
	if duplicate {
		s.metrics.IncDuplicate(eventType)
		return nil
	}
	s.metrics.IncProcessed(eventType)
	return nil
}

func (s *service) markDelivery(ctx context.Context, eventID string) (duplicate bool, err error) {
	if s.guard == nil {
		return false, nil
	}
	key := s.guard.IdempotencyKey(guardScope, eventID)
	set, err := s.guard.SetNX(ctx, key, "1", guardTTL)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// releaseDelivery frees the guard key after a failed attempt so Stripe's
// redelivery can retry.
func (s *service) releaseDelivery(ctx context.Context, eventID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Del(ctx, s.guard.IdempotencyKey(guardScope, eventID)); err != nil {
		s.logg.Warn(ctx, "failed to release webhook delivery guard")
	}
}

type notificationMeta struct {
	eventID         uuid.UUID
	quantity        int
	completeSession bool
	sessionID       uuid.UUID
	endEntityID     uuid.UUID
}

func parseMeta(checkoutSession *stripe.CheckoutSession) (*notificationMeta, error) {
	raw := checkoutSession.Metadata
	eventID, err := uuid.Parse(raw[metaEventID])
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification is missing the event id")
	}
	quantity, err := strconv.Atoi(raw[metaQuantity])
	if err != nil || quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification carries an invalid quantity")
	}

	meta := &notificationMeta{eventID: eventID, quantity: quantity}
	meta.completeSession, _ = strconv.ParseBool(raw[metaCompleteFulfilmentSession])
	if id, err := uuid.Parse(raw[metaFulfilmentSessionID]); err == nil {
		meta.sessionID = id
	}
	if id, err := uuid.Parse(raw[metaEndFulfilmentEntityID]); err == nil {
		meta.endEntityID = id
	}
	return meta, nil
}

func customField(checkoutSession *stripe.CheckoutSession, key string) string {
	for _, field := range checkoutSession.CustomFields {
		if field != nil && field.Key == key && field.Text != nil {
			return field.Text.Value
		}
	}
	return ""
}

func purchaserEmail(checkoutSession *stripe.CheckoutSession) string {
	if checkoutSession.CustomerDetails != nil {
		return checkoutSession.CustomerDetails.Email
	}
	return checkoutSession.CustomerEmail
}

// handleCompleted creates the order and its tickets exactly once. The
// ledger check and all writes share one transaction so check-then-act is
// atomic under concurrent deliveries.
func (s *service) handleCompleted(ctx context.Context, checkoutSession *stripe.CheckoutSession) (duplicate bool, err error) {
	meta, err := parseMeta(checkoutSession)
	if err != nil {
		return false, err
	}
	email := purchaserEmail(checkoutSession)
	if email == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "notification has no purchaser email")
	}

	var (
		order     models.Order
		eventName string
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		eventsRepo := s.eventsRepo.WithTx(tx)
		ticketsRepo := s.ticketsRepo.WithTx(tx)

		ledger, err := eventsRepo.MetadataForUpdate(ctx, meta.eventID)
		if err != nil {
			return err
		}
		if ledger.CompletedCheckoutSessionIDs.Contains(checkoutSession.ID) {
			duplicate = true
			return nil
		}
		event, err := eventsRepo.FindByIDForUpdate(ctx, meta.eventID)
		if err != nil {
			return err
		}
		eventName = event.Name

		status := enums.OrderStatusPending
		if checkoutSession.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			status = enums.OrderStatusApproved
		}

		now := time.Now()
		order = models.Order{
			ID:            uuid.New(),
			EventID:       meta.eventID,
			Email:         email,
			FullName:      customField(checkoutSession, customFieldFullName),
			Phone:         customField(checkoutSession, customFieldPhone),
			Status:        status,
			AmountCents:   checkoutSession.AmountTotal,
			DatePurchased: now,
		}
		checkoutID := checkoutSession.ID
		order.StripeCheckoutSessionID = &checkoutID
		if checkoutSession.PaymentIntent != nil {
			intentID := checkoutSession.PaymentIntent.ID
			order.StripePaymentIntentID = &intentID
		}
		if err := ticketsRepo.CreateOrder(ctx, &order); err != nil {
			return err
		}

		perTicket := checkoutSession.AmountSubtotal / int64(meta.quantity)
		ticketRows := make([]models.Ticket, 0, meta.quantity)
		ticketIDs := make([]uuid.UUID, 0, meta.quantity)
		for i := 0; i < meta.quantity; i++ {
			ticket := models.Ticket{
				ID:          uuid.New(),
				EventID:     meta.eventID,
				OrderID:     order.ID,
				Email:       email,
				Status:      status,
				PriceCents:  perTicket,
				PurchasedAt: now,
			}
			ticketRows = append(ticketRows, ticket)
			ticketIDs = append(ticketIDs, ticket.ID)
		}
		if err := ticketsRepo.CreateTickets(ctx, ticketRows); err != nil {
			return err
		}
		order.Tickets = ticketRows

		// Roster keys are email hashes; the raw address only lives inside
		// the value.
		if ledger.Purchasers == nil {
			ledger.Purchasers = types.PurchaserMap{}
		}
		hash := security.HashEmail(email)
		purchaser := ledger.Purchasers[hash]
		purchaser.Email = email
		purchaser.TicketCount += meta.quantity
		purchaser.TicketIDs = append(purchaser.TicketIDs, ticketIDs...)
		ledger.Purchasers[hash] = purchaser

		ledger.OrderIDs = append(ledger.OrderIDs, order.ID)
		ledger.CompleteTicketCount += meta.quantity
		ledger.CompletedCheckoutSessionIDs = append(ledger.CompletedCheckoutSessionIDs, checkoutSession.ID)

		// Vacancy never exceeds capacity minus sold tickets; clamp down
		// when an earlier restock overshot.
		maxVacancy := event.Capacity - ledger.CompleteTicketCount
		if maxVacancy < 0 {
			maxVacancy = 0
		}
		if event.Vacancy > maxVacancy {
			if err := eventsRepo.AdjustVacancy(ctx, meta.eventID, maxVacancy-event.Vacancy); err != nil {
				return err
			}
		}
		return eventsRepo.SaveMetadata(ctx, ledger)
	})
	if err != nil || duplicate {
		return duplicate, err
	}

	s.afterCompleted(ctx, meta, &order, eventName)
	return false, nil
}

// afterCompleted runs the post-commit side effects. They are best effort:
// the order and tickets are already durable and must not be rolled back
// because a follow-up failed.
func (s *service) afterCompleted(ctx context.Context, meta *notificationMeta, order *models.Order, eventName string) {
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	if meta.completeSession && meta.sessionID != uuid.Nil && meta.endEntityID != uuid.Nil {
		if err := s.sessions.Complete(ctx, meta.sessionID, meta.endEntityID); err != nil {
			s.logg.Error(logCtx, "failed to complete fulfilment session after payment", err)
		}
	}

	receipt := emails.ReceiptEmail{
		To:          order.Email,
		FullName:    order.FullName,
		EventName:   eventName,
		TicketCount: len(order.Tickets),
		AmountCents: order.AmountCents,
		OrderID:     order.ID.String(),
	}
	if err := s.sender.SendReceipt(ctx, receipt); err != nil {
		s.logg.Error(logCtx, "failed to send receipt email", err)
	}
}

// handleExpired restocks the reserved quantity once. Restock is capped by
// the event capacity since vacancy may have moved since the reservation.
func (s *service) handleExpired(ctx context.Context, checkoutSession *stripe.CheckoutSession) (duplicate bool, err error) {
	meta, err := parseMeta(checkoutSession)
	if err != nil {
		return false, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		eventsRepo := s.eventsRepo.WithTx(tx)

		ledger, err := eventsRepo.MetadataForUpdate(ctx, meta.eventID)
		if err != nil {
			return err
		}
		if ledger.CompletedCheckoutSessionIDs.Contains(checkoutSession.ID) {
			duplicate = true
			return nil
		}
		event, err := eventsRepo.FindByIDForUpdate(ctx, meta.eventID)
		if err != nil {
			return err
		}

		restock := meta.quantity
		if event.Vacancy+restock > event.Capacity {
			restock = event.Capacity - event.Vacancy
		}
		if restock > 0 {
			if err := eventsRepo.AdjustVacancy(ctx, meta.eventID, restock); err != nil {
				return err
			}
		}

		// Recording the expiry in the ledger makes a late completed
		// notification for the same checkout a no-op.
		ledger.CompletedCheckoutSessionIDs = append(ledger.CompletedCheckoutSessionIDs, checkoutSession.ID)
		return eventsRepo.SaveMetadata(ctx, ledger)
	})
	return duplicate, err
}
