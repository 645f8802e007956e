package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/emails"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/internal/tickets"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/security"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

const testSigningSecret = "whsec_test"

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEventsRepo struct {
	event    *models.Event
	metadata *models.EventMetadata
	saved    int
}

func (s *stubEventsRepo) WithTx(tx *gorm.DB) events.Repository { return s }

func (s *stubEventsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if s.event == nil || s.event.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	copied := *s.event
	return &copied, nil
}

func (s *stubEventsRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.FindByID(ctx, id)
}

func (s *stubEventsRepo) FindOrganiser(ctx context.Context, organiserID uuid.UUID) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organiser not found")
}

func (s *stubEventsRepo) AdjustVacancy(ctx context.Context, id uuid.UUID, delta int) error {
	if s.event == nil || s.event.Vacancy+delta < 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "vacancy adjustment rejected")
	}
	s.event.Vacancy += delta
	return nil
}

func (s *stubEventsRepo) ActivateOrganiserAccount(ctx context.Context, organiserID uuid.UUID) error {
	return nil
}

func (s *stubEventsRepo) MetadataForUpdate(ctx context.Context, eventID uuid.UUID) (*models.EventMetadata, error) {
	if s.metadata == nil {
		s.metadata = &models.EventMetadata{EventID: eventID}
	}
	return s.metadata, nil
}

func (s *stubEventsRepo) SaveMetadata(ctx context.Context, meta *models.EventMetadata) error {
	s.metadata = meta
	s.saved++
	return nil
}

type stubTicketsRepo struct {
	orders  []models.Order
	tickets []models.Ticket
}

func (s *stubTicketsRepo) WithTx(tx *gorm.DB) tickets.Repository { return s }

func (s *stubTicketsRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	s.orders = append(s.orders, *order)
	return nil
}

func (s *stubTicketsRepo) CreateTickets(ctx context.Context, rows []models.Ticket) error {
	s.tickets = append(s.tickets, rows...)
	return nil
}

func (s *stubTicketsRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubTicketsRepo) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubTicketsRepo) TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, now time.Time) error {
	return nil
}

type stubCompleter struct {
	calls [][2]uuid.UUID
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, sessionID, entityID uuid.UUID) error {
	s.calls = append(s.calls, [2]uuid.UUID{sessionID, entityID})
	return s.err
}

type stubSender struct {
	receipts []emails.ReceiptEmail
}

func (s *stubSender) SendReceipt(ctx context.Context, email emails.ReceiptEmail) error {
	s.receipts = append(s.receipts, email)
	return nil
}

func (s *stubSender) SendDecision(ctx context.Context, email emails.DecisionEmail) error {
	return nil
}

type stubGuard struct {
	seen map[string]bool
}

func (s *stubGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubGuard) IdempotencyKey(scope, id string) string {
	return "sh:idempotency:" + scope + ":" + id
}

func (s *stubGuard) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.seen, key)
	}
	return nil
}

type harness struct {
	svc        *service
	eventsRepo *stubEventsRepo
	tickets    *stubTicketsRepo
	completer  *stubCompleter
	sender     *stubSender
	guard      *stubGuard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		eventsRepo: &stubEventsRepo{},
		tickets:    &stubTicketsRepo{},
		completer:  &stubCompleter{},
		sender:     &stubSender{},
		guard:      &stubGuard{},
	}
	h.svc = &service{
		tx:            stubTxRunner{},
		eventsRepo:    h.eventsRepo,
		ticketsRepo:   h.tickets,
		sessions:      h.completer,
		sender:        h.sender,
		guard:         h.guard,
		logg:          logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
		signingSecret: testSigningSecret,
	}
	return h
}

func (h *harness) seedEvent(vacancy int) *models.Event {
	h.eventsRepo.event = &models.Event{
		ID:       uuid.New(),
		Name:     "Sunday Badminton",
		Capacity: 5,
		Vacancy:  vacancy,
	}
	return h.eventsRepo.event
}

type sessionOpts struct {
	checkoutID    string
	eventID       uuid.UUID
	quantity      int
	paymentStatus string
	sessionID     uuid.UUID
	endEntityID   uuid.UUID
}

func checkoutSessionJSON(opts sessionOpts) []byte {
	if opts.paymentStatus == "" {
		opts.paymentStatus = "paid"
	}
	payload := map[string]any{
		"id":              opts.checkoutID,
		"amount_total":    2047,
		"amount_subtotal": 2000,
		"payment_status":  opts.paymentStatus,
		"payment_intent":  "pi_123",
		"customer_details": map[string]any{
			"email": "buyer@example.com",
		},
		"custom_fields": []map[string]any{
			{"key": customFieldFullName, "text": map[string]any{"value": "Alex Chen"}},
			{"key": customFieldPhone, "text": map[string]any{"value": "0400000000"}},
		},
		"metadata": map[string]string{
			metaEventID:                   opts.eventID.String(),
			metaQuantity:                  fmt.Sprintf("%d", opts.quantity),
			metaCompleteFulfilmentSession: "true",
			metaFulfilmentSessionID:       opts.sessionID.String(),
			metaEndFulfilmentEntityID:     opts.endEntityID.String(),
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func makeEvent(t *testing.T, eventType stripe.EventType, raw []byte) stripe.Event {
	t.Helper()
	return stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func signPayload(payload []byte, secret string, at time.Time) string {
	timestamp := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyAndParse(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	event, err := h.svc.VerifyAndParse(payload, signPayload(payload, testSigningSecret, time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event %+v", event)
	}

	_, err = h.svc.VerifyAndParse(payload, signPayload(payload, "whsec_other", time.Now()))
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestHandleCompletedCreatesOrderAndTickets(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)
	sessionID, endID := uuid.New(), uuid.New()

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_1",
		eventID:     event.ID,
		quantity:    2,
		sessionID:   sessionID,
		endEntityID: endID,
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.tickets.orders) != 1 {
		t.Fatalf("expected one order, got %d", len(h.tickets.orders))
	}
	order := h.tickets.orders[0]
	if order.Status != enums.OrderStatusApproved || order.AmountCents != 2047 {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.FullName != "Alex Chen" || order.Phone != "0400000000" {
		t.Fatalf("custom fields not captured: %+v", order)
	}
	if order.StripePaymentIntentID == nil || *order.StripePaymentIntentID != "pi_123" {
		t.Fatalf("payment intent not captured: %+v", order)
	}
	if len(h.tickets.tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(h.tickets.tickets))
	}
	for _, ticket := range h.tickets.tickets {
		if ticket.Status != enums.OrderStatusApproved || ticket.PriceCents != 1000 {
			t.Fatalf("unexpected ticket %+v", ticket)
		}
	}

	meta := h.eventsRepo.metadata
	if !meta.CompletedCheckoutSessionIDs.Contains("cs_1") {
		t.Fatal("checkout id not recorded in the ledger")
	}
	if meta.CompleteTicketCount != 2 || len(meta.OrderIDs) != 1 {
		t.Fatalf("ledger not updated: %+v", meta)
	}
	hash := security.HashEmail("buyer@example.com")
	purchaser, ok := meta.Purchasers[hash]
	if !ok {
		t.Fatal("purchaser roster must be keyed by email hash")
	}
	if purchaser.TicketCount != 2 || len(purchaser.TicketIDs) != 2 {
		t.Fatalf("unexpected roster entry %+v", purchaser)
	}
	if _, rawKey := meta.Purchasers["buyer@example.com"]; rawKey {
		t.Fatal("raw email must never be a roster key")
	}

	if len(h.completer.calls) != 1 || h.completer.calls[0][0] != sessionID || h.completer.calls[0][1] != endID {
		t.Fatalf("fulfilment session not completed: %+v", h.completer.calls)
	}
	if len(h.sender.receipts) != 1 || h.sender.receipts[0].To != "buyer@example.com" {
		t.Fatalf("receipt not sent: %+v", h.sender.receipts)
	}
}

func TestHandleCompletedDeferredCaptureStaysPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:    "cs_2",
		eventID:       event.ID,
		quantity:      1,
		paymentStatus: "unpaid",
		sessionID:     uuid.New(),
		endEntityID:   uuid.New(),
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.tickets.orders[0].Status != enums.OrderStatusPending {
		t.Fatalf("deferred capture orders must stay pending, got %v", h.tickets.orders[0].Status)
	}
	if h.tickets.tickets[0].Status != enums.OrderStatusPending {
		t.Fatal("tickets must mirror the order status")
	}
}

func TestHandleCompletedDuplicateLedgerEntry(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)
	h.eventsRepo.metadata = &models.EventMetadata{
		EventID:                     event.ID,
		CompletedCheckoutSessionIDs: []string{"cs_dup"},
	}

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_dup",
		eventID:     event.ID,
		quantity:    2,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)); err != nil {
		t.Fatalf("duplicate delivery must succeed: %v", err)
	}
	if len(h.tickets.orders) != 0 || len(h.tickets.tickets) != 0 {
		t.Fatal("duplicate delivery must not create orders or tickets")
	}
	if len(h.sender.receipts) != 0 {
		t.Fatal("duplicate delivery must not send email")
	}
}

func TestHandleCompletedClampsOverRestockedVacancy(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	// Capacity 5, a full shelf, yet two of those seats are being sold
	// right now: an earlier expiry restocked what this checkout holds.
	event := h.seedEvent(5)

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_overstock",
		eventID:     event.ID,
		quantity:    2,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.eventsRepo.event.Vacancy != 3 {
		t.Fatalf("expected vacancy clamped to 3, got %d", h.eventsRepo.event.Vacancy)
	}
	if len(h.tickets.tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(h.tickets.tickets))
	}
}

func TestHandleCompletedLeavesConsistentVacancyAlone(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_consistent",
		eventID:     event.ID,
		quantity:    2,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.eventsRepo.event.Vacancy != 3 {
		t.Fatalf("consistent vacancy must not move, got %d", h.eventsRepo.event.Vacancy)
	}
}

func TestHandleEventGuardDropsRepeatDelivery(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_3",
		eventID:     event.ID,
		quantity:    1,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	evt := makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)

	if err := h.svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("repeat delivery must succeed: %v", err)
	}
	if len(h.tickets.orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(h.tickets.orders))
	}
}

func TestHandleEventReleasesGuardOnFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	// No event seeded: processing fails after the guard is set.

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_4",
		eventID:     uuid.New(),
		quantity:    1,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	evt := makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw)

	if err := h.svc.HandleEvent(context.Background(), evt); err == nil {
		t.Fatal("expected failure for unknown event")
	}
	key := h.guard.IdempotencyKey(guardScope, evt.ID)
	if h.guard.seen[key] {
		t.Fatal("guard key must be released after a failed attempt")
	}
}

func TestHandleExpiredRestocksOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_5",
		eventID:     event.ID,
		quantity:    2,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionExpired, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.eventsRepo.event.Vacancy != 5 {
		t.Fatalf("expected vacancy restocked to 5, got %d", h.eventsRepo.event.Vacancy)
	}
	if !h.eventsRepo.metadata.CompletedCheckoutSessionIDs.Contains("cs_5") {
		t.Fatal("expiry must be recorded in the ledger")
	}

	// A second expiry delivery for the same checkout changes nothing.
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionExpired, raw)); err != nil {
		t.Fatalf("duplicate expiry must succeed: %v", err)
	}
	if h.eventsRepo.event.Vacancy != 5 {
		t.Fatalf("duplicate expiry must not restock again, got %d", h.eventsRepo.event.Vacancy)
	}
}

func TestHandleExpiredRestockCappedAtCapacity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(4)

	raw := checkoutSessionJSON(sessionOpts{
		checkoutID:  "cs_6",
		eventID:     event.ID,
		quantity:    3,
		sessionID:   uuid.New(),
		endEntityID: uuid.New(),
	})
	if err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionExpired, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.eventsRepo.event.Vacancy != 5 {
		t.Fatalf("restock must cap at capacity, got %d", h.eventsRepo.event.Vacancy)
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	evt := makeEvent(t, "payment_intent.succeeded", []byte(`{}`))
	if err := h.svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unsubscribed events must be acknowledged: %v", err)
	}
	if len(h.tickets.orders) != 0 {
		t.Fatal("unsubscribed events must not touch the store")
	}
}

func TestHandleCompletedMissingEmailRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	event := h.seedEvent(3)

	payload := map[string]any{
		"id":             "cs_7",
		"payment_status": "paid",
		"metadata": map[string]string{
			metaEventID:  event.ID.String(),
			metaQuantity: "1",
		},
	}
	raw, _ := json.Marshal(payload)
	err := h.svc.HandleEvent(context.Background(), makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, raw))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(h.tickets.orders) != 0 {
		t.Fatal("rejected payloads must have no side effects")
	}
}
