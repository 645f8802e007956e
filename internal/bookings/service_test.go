package bookings

import (
	"context"
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
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEventsRepo struct {
	event     *models.Event
	organiser *models.User
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
	if s.organiser == nil || s.organiser.ID != organiserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organiser not found")
	}
	copied := *s.organiser
	return &copied, nil
}

func (s *stubEventsRepo) AdjustVacancy(ctx context.Context, id uuid.UUID, delta int) error {
	return nil
}

func (s *stubEventsRepo) ActivateOrganiserAccount(ctx context.Context, organiserID uuid.UUID) error {
	return nil
}

func (s *stubEventsRepo) MetadataForUpdate(ctx context.Context, eventID uuid.UUID) (*models.EventMetadata, error) {
	return &models.EventMetadata{EventID: eventID}, nil
}

func (s *stubEventsRepo) SaveMetadata(ctx context.Context, meta *models.EventMetadata) error {
	return nil
}

type stubTicketsRepo struct {
	order          *models.Order
	transitionErrs []error
	transitions    [][2]enums.OrderStatus
}

func (s *stubTicketsRepo) WithTx(tx *gorm.DB) tickets.Repository { return s }

func (s *stubTicketsRepo) CreateOrder(ctx context.Context, order *models.Order) error { return nil }

func (s *stubTicketsRepo) CreateTickets(ctx context.Context, rows []models.Ticket) error { return nil }

func (s *stubTicketsRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubTicketsRepo) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, id)
}

func (s *stubTicketsRepo) TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, now time.Time) error {
	if len(s.transitionErrs) > 0 {
		err := s.transitionErrs[0]
		s.transitionErrs = s.transitionErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.order.Status != from {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is not in the expected status")
	}
	s.order.Status = to
	s.transitions = append(s.transitions, [2]enums.OrderStatus{from, to})
	return nil
}

type stubPaymentClient struct {
	captures   int
	cancels    int
	captureErr error
	cancelErr  error
	lastParams *stripe.Params
}

func (s *stubPaymentClient) CapturePaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	s.captures++
	if params != nil {
		s.lastParams = &params.Params
	}
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (s *stubPaymentClient) CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	s.cancels++
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusCanceled}, nil
}

type stubSender struct {
	decisions []emails.DecisionEmail
}

func (s *stubSender) SendReceipt(ctx context.Context, email emails.ReceiptEmail) error { return nil }

func (s *stubSender) SendDecision(ctx context.Context, email emails.DecisionEmail) error {
	s.decisions = append(s.decisions, email)
	return nil
}

type harness struct {
	svc     *service
	events  *stubEventsRepo
	tickets *stubTicketsRepo
	stripe  *stubPaymentClient
	sender  *stubSender
	req     DecisionRequest
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	organiserID := uuid.New()
	eventID := uuid.New()
	orderID := uuid.New()
	account := "acct_123"
	intent := "pi_123"

	h := &harness{
		events: &stubEventsRepo{
			event: &models.Event{ID: eventID, OrganiserID: organiserID, Name: "Club Finals"},
			organiser: &models.User{
				ID:                  organiserID,
				StripeAccountID:     &account,
				StripeAccountActive: true,
			},
		},
		tickets: &stubTicketsRepo{
			order: &models.Order{
				ID:                    orderID,
				EventID:               eventID,
				Email:                 "buyer@example.com",
				Status:                enums.OrderStatusPending,
				StripePaymentIntentID: &intent,
			},
		},
		stripe: &stubPaymentClient{},
		sender: &stubSender{},
		req:    DecisionRequest{EventID: eventID, OrganiserID: organiserID, OrderID: orderID},
	}
	h.svc = &service{
		tx:          stubTxRunner{},
		eventsRepo:  h.events,
		ticketsRepo: h.tickets,
		stripe:      h.stripe,
		sender:      h.sender,
		logg:        logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(maxTransitionAttempts-1, retry.NewConstant(time.Millisecond))
		},
	}
	return h
}

func TestApproveCapturesAndTransitions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	decision, err := h.svc.Approve(context.Background(), h.req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Status != enums.OrderStatusApproved {
		t.Fatalf("expected approved, got %v", decision.Status)
	}
	if h.stripe.captures != 1 {
		t.Fatalf("expected one capture, got %d", h.stripe.captures)
	}
	if h.stripe.lastParams == nil || h.stripe.lastParams.StripeAccount == nil {
		t.Fatal("capture must run on the organiser's connected account")
	}
	if h.tickets.order.Status != enums.OrderStatusApproved {
		t.Fatalf("order not transitioned: %v", h.tickets.order.Status)
	}
	if len(h.sender.decisions) != 1 || !h.sender.decisions[0].Approved {
		t.Fatalf("decision email not sent: %+v", h.sender.decisions)
	}
}

func TestApproveCaptureFailureLeavesStatusUntouched(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.stripe.captureErr = &stripe.Error{HTTPStatusCode: 500}

	_, err := h.svc.Approve(context.Background(), h.req)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if h.tickets.order.Status != enums.OrderStatusPending {
		t.Fatalf("status must stay pending after capture failure, got %v", h.tickets.order.Status)
	}
	if len(h.tickets.transitions) != 0 {
		t.Fatal("no transition may run when capture fails")
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.tickets.order.Status = enums.OrderStatusApproved

	decision, err := h.svc.Approve(context.Background(), h.req)
	if err != nil {
		t.Fatalf("re-approving must be a safe no-op: %v", err)
	}
	if decision.Status != enums.OrderStatusApproved {
		t.Fatalf("unexpected status %v", decision.Status)
	}
	if h.stripe.captures != 0 {
		t.Fatal("re-approving must not capture again")
	}
}

func TestApprovalExclusivity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.tickets.order.Status = enums.OrderStatusRejected

	if _, err := h.svc.Approve(context.Background(), h.req); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("a rejected order can never be approved, got %v", err)
	}

	h.tickets.order.Status = enums.OrderStatusApproved
	if _, err := h.svc.Reject(context.Background(), h.req); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("an approved order can never be rejected, got %v", err)
	}
}

func TestApproveAuthorisation(t *testing.T) {
	t.Parallel()

	t.Run("organiser mismatch", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.req.OrganiserID = uuid.New()
		h.events.organiser.ID = h.req.OrganiserID

		if _, err := h.svc.Approve(context.Background(), h.req); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("inactive payment account", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.events.organiser.StripeAccountActive = false

		if _, err := h.svc.Approve(context.Background(), h.req); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
		if h.stripe.captures != 0 {
			t.Fatal("authorisation failures must not reach the provider")
		}
	})

	t.Run("order from another event", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.tickets.order.EventID = uuid.New()

		if _, err := h.svc.Approve(context.Background(), h.req); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestApproveSyncsOutOfBandCancellation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.stripe.captureErr = &stripe.Error{
		Code:          stripe.ErrorCodePaymentIntentUnexpectedState,
		PaymentIntent: &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled},
	}

	decision, err := h.svc.Approve(context.Background(), h.req)
	if err != nil {
		t.Fatalf("cancelled intents must sync, not fail: %v", err)
	}
	if decision.Status != enums.OrderStatusRejected {
		t.Fatalf("expected the order to sync to rejected, got %v", decision.Status)
	}
	if h.tickets.order.Status != enums.OrderStatusRejected {
		t.Fatalf("order not synced: %v", h.tickets.order.Status)
	}
}

func TestApproveRetriesTransitionAfterCapture(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.tickets.transitionErrs = []error{
		pkgerrors.New(pkgerrors.CodeInternal, "transient store failure"),
	}

	decision, err := h.svc.Approve(context.Background(), h.req)
	if err != nil {
		t.Fatalf("transition should succeed on retry: %v", err)
	}
	if decision.Status != enums.OrderStatusApproved {
		t.Fatalf("unexpected status %v", decision.Status)
	}
	if h.tickets.order.Status != enums.OrderStatusApproved {
		t.Fatalf("order not transitioned: %v", h.tickets.order.Status)
	}
}

func TestRejectCancelsAndTransitions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	decision, err := h.svc.Reject(context.Background(), h.req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Status != enums.OrderStatusRejected {
		t.Fatalf("expected rejected, got %v", decision.Status)
	}
	if h.stripe.cancels != 1 {
		t.Fatalf("expected one cancel, got %d", h.stripe.cancels)
	}
	if h.tickets.order.Status != enums.OrderStatusRejected {
		t.Fatalf("order not transitioned: %v", h.tickets.order.Status)
	}
	if len(h.sender.decisions) != 1 || h.sender.decisions[0].Approved {
		t.Fatalf("decision email not sent: %+v", h.sender.decisions)
	}
}

func TestRejectToleratesAlreadyCancelledIntent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.stripe.cancelErr = &stripe.Error{
		Code:          stripe.ErrorCodePaymentIntentUnexpectedState,
		PaymentIntent: &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled},
	}

	decision, err := h.svc.Reject(context.Background(), h.req)
	if err != nil {
		t.Fatalf("already-cancelled intents must not fail rejection: %v", err)
	}
	if decision.Status != enums.OrderStatusRejected {
		t.Fatalf("expected rejected, got %v", decision.Status)
	}
}

func TestRejectIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.tickets.order.Status = enums.OrderStatusRejected

	decision, err := h.svc.Reject(context.Background(), h.req)
	if err != nil {
		t.Fatalf("re-rejecting must be a safe no-op: %v", err)
	}
	if decision.Status != enums.OrderStatusRejected {
		t.Fatalf("unexpected status %v", decision.Status)
	}
	if h.stripe.cancels != 0 {
		t.Fatal("re-rejecting must not cancel again")
	}
}
