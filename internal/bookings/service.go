package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/emails"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/internal/tickets"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

const (
	// Once funds have moved the store update must land; the transition is
	// retried a few times before giving up loudly.
	maxTransitionAttempts = 3
	transitionRetryBase   = 500 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DecisionRequest identifies one booking decision by the acting organiser.
type DecisionRequest struct {
	EventID     uuid.UUID
	OrganiserID uuid.UUID
	OrderID     uuid.UUID
}

// Decision reports the order status after an approve/reject call.
type Decision struct {
	OrderID uuid.UUID         `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
	Message string            `json:"message"`
}

// Service decides held bookings: capture the authorised payment and
// approve, or cancel it and reject.
type Service interface {
	Approve(ctx context.Context, req DecisionRequest) (*Decision, error)
	Reject(ctx context.Context, req DecisionRequest) (*Decision, error)
}

type service struct {
	tx          txRunner
	eventsRepo  events.Repository
	ticketsRepo tickets.Repository
	stripe      StripePaymentClient
	sender      emails.Sender
	logg        *logger.Logger
	newBackoff  func() retry.Backoff
}

func defaultTransitionBackoff() retry.Backoff {
	return retry.WithMaxRetries(maxTransitionAttempts-1, retry.NewExponential(transitionRetryBase))
}

// NewService builds the booking approval service.
func NewService(
	tx txRunner,
	eventsRepo events.Repository,
	ticketsRepo tickets.Repository,
	stripeClient StripePaymentClient,
	sender emails.Sender,
	logg *logger.Logger,
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
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		eventsRepo:  eventsRepo,
		ticketsRepo: ticketsRepo,
		stripe:      stripeClient,
		sender:      sender,
		logg:        logg,
		newBackoff:  defaultTransitionBackoff,
	}, nil
}

// Approve captures the held payment and then moves the order and its
// tickets to APPROVED. A capture failure leaves the status untouched. A
// payment cancelled out of band is synced to REJECTED instead of failing.
func (s *service) Approve(ctx context.Context, req DecisionRequest) (*Decision, error) {
	order, organiser, eventName, err := s.authorise(ctx, req)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusApproved:
		return &Decision{OrderID: order.ID, Status: order.Status, Message: "order is already approved"}, nil
	case enums.OrderStatusRejected:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order has already been rejected")
	}
	if order.StripePaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order has no held payment to capture")
	}

	params := &stripe.PaymentIntentCaptureParams{}
	params.SetStripeAccount(*organiser.StripeAccountID)
	if _, err := s.stripe.CapturePaymentIntent(ctx, *order.StripePaymentIntentID, params); err != nil {
		if intentCancelled(err) {
			return s.syncCancelledIntent(ctx, order, eventName)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capturing payment")
	}

	if err := s.transitionWithRetry(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusApproved); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment captured but order transition failed", err)
		return nil, err
	}

	s.notifyDecision(ctx, order, eventName, true)
	return &Decision{OrderID: order.ID, Status: enums.OrderStatusApproved, Message: "booking approved"}, nil
}

// Reject cancels the held payment and then moves the order and its
// tickets to REJECTED. Cancelling an already-cancelled payment is fine.
func (s *service) Reject(ctx context.Context, req DecisionRequest) (*Decision, error) {
	order, organiser, eventName, err := s.authorise(ctx, req)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusRejected:
		return &Decision{OrderID: order.ID, Status: order.Status, Message: "order is already rejected"}, nil
	case enums.OrderStatusApproved:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order has already been approved")
	}
	if order.StripePaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order has no held payment to cancel")
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.SetStripeAccount(*organiser.StripeAccountID)
	if _, err := s.stripe.CancelPaymentIntent(ctx, *order.StripePaymentIntentID, params); err != nil && !intentCancelled(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling payment")
	}

	if err := s.transitionWithRetry(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusRejected); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment cancelled but order transition failed", err)
		return nil, err
	}

	s.notifyDecision(ctx, order, eventName, false)
	return &Decision{OrderID: order.ID, Status: enums.OrderStatusRejected, Message: "booking rejected"}, nil
}

// authorise checks that the caller owns the event and has an active
// payment account, then loads the order. Mismatches are fatal, never
// retried.
func (s *service) authorise(ctx context.Context, req DecisionRequest) (*models.Order, *models.User, string, error) {
	if req.EventID == uuid.Nil || req.OrganiserID == uuid.Nil || req.OrderID == uuid.Nil {
		return nil, nil, "", pkgerrors.New(pkgerrors.CodeValidation, "event, organiser and order ids are required")
	}

	event, err := s.eventsRepo.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, nil, "", err
	}
	if event.OrganiserID != req.OrganiserID {
		return nil, nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "only the event organiser can decide bookings")
	}
	organiser, err := s.eventsRepo.FindOrganiser(ctx, req.OrganiserID)
	if err != nil {
		return nil, nil, "", err
	}
	if organiser.StripeAccountID == nil || !organiser.StripeAccountActive {
		return nil, nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "organiser payment account is not active")
	}

	order, err := s.ticketsRepo.FindOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, "", err
	}
	if order.EventID != req.EventID {
		return nil, nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "order does not belong to this event")
	}
	return order, organiser, event.Name, nil
}

func (s *service) transitionWithRetry(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error {
	return retry.Do(ctx, s.newBackoff(), func(ctx context.Context) error {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.ticketsRepo.WithTx(tx).TransitionOrder(ctx, orderID, from, to, time.Now())
		})
		if err == nil {
			return nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			// Someone else already decided; not transient.
			return err
		}
		return retry.RetryableError(err)
	})
}

// syncCancelledIntent aligns the order with a payment that was cancelled
// outside this flow. The organiser's intent cannot be honoured, but the
// store should reflect reality rather than error.
func (s *service) syncCancelledIntent(ctx context.Context, order *models.Order, eventName string) (*Decision, error) {
	if err := s.transitionWithRetry(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusRejected); err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, order, eventName, false)
	return &Decision{
		OrderID: order.ID,
		Status:  enums.OrderStatusRejected,
		Message: "payment was cancelled before capture; booking rejected",
	}, nil
}

func (s *service) notifyDecision(ctx context.Context, order *models.Order, eventName string, approved bool) {
	email := emails.DecisionEmail{
		To:        order.Email,
		FullName:  order.FullName,
		EventName: eventName,
		Approved:  approved,
		OrderID:   order.ID.String(),
	}
	if err := s.sender.SendDecision(ctx, email); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "failed to send decision email", err)
	}
}

func intentCancelled(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	if stripeErr.PaymentIntent != nil && stripeErr.PaymentIntent.Status == stripe.PaymentIntentStatusCanceled {
		return true
	}
	return stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState
}
