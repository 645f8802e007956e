package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/pkg/config"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	pkgstripe "github.com/owya490/sportshub-backend/pkg/stripe"
	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

// Metadata keys carried on every checkout session so the webhook processor
// can route the notification back to the fulfilment session.
const (
	MetaEventID                   = "eventId"
	MetaIsPrivate                 = "isPrivate"
	MetaQuantity                  = "quantity"
	MetaCompleteFulfilmentSession = "completeFulfilmentSession"
	MetaFulfilmentSessionID       = "fulfilmentSessionId"
	MetaEndFulfilmentEntityID     = "endFulfilmentEntityId"
)

const (
	customFieldFullName = "attendeeFullName"
	customFieldPhone    = "attendeePhone"

	maxCreateAttempts = 5
	retryBase         = time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CheckoutRequest describes one reservation-plus-checkout operation.
type CheckoutRequest struct {
	EventID                   uuid.UUID
	IsPrivate                 bool
	Quantity                  int
	SuccessURL                string
	CancelURL                 string
	CompleteFulfilmentSession bool
	FulfilmentSessionID       uuid.UUID
	EndFulfilmentEntityID     uuid.UUID

	// DeferCapture authorises the card now and captures on organiser
	// approval (booking approval flows).
	DeferCapture bool
}

// CheckoutResult is the external checkout resource created for a committed
// reservation.
type CheckoutResult struct {
	CheckoutSessionID string
	CheckoutURL       string
	AmountCents       int64
	Event             models.Event
}

// Service coordinates the reservation saga: transactional inventory
// decrement, external checkout creation with bounded retry, and
// compensation when the provider ultimately fails.
type Service interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

type service struct {
	tx         txRunner
	eventsRepo events.Repository
	stripe     StripeCheckoutClient
	cfg        config.StripeConfig
	logg       *logger.Logger
	newBackoff func() retry.Backoff
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(maxCreateAttempts-1, retry.NewExponential(retryBase))
}

// NewService builds the checkout coordinator.
func NewService(
	tx txRunner,
	eventsRepo events.Repository,
	stripeClient StripeCheckoutClient,
	cfg config.StripeConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if eventsRepo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         tx,
		eventsRepo: eventsRepo,
		stripe:     stripeClient,
		cfg:        cfg,
		logg:       logg,
		newBackoff: defaultBackoff,
	}, nil
}

func (s *service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success and cancel urls required")
	}

	// Phase 1: validate and commit the reservation.
	reserved, err := s.reserve(ctx, req)
	if err != nil {
		return nil, err
	}

	// Phase 2: create the checkout resource outside any transaction.
	result, err := s.createSessionWithRetry(ctx, req, reserved)
	if err == nil {
		result.Event = reserved.event
		return result, nil
	}

	// Phase 3: the reservation must be restored before the caller is told
	// the operation failed.
	if compErr := s.compensate(ctx, req.EventID, req.Quantity); compErr != nil {
		s.logg.Error(ctx, "reservation compensation failed", compErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, compErr, "restoring reservation after checkout failure")
	}
	return nil, err
}

type reservationState struct {
	event     models.Event
	organiser models.User
}

// reserve runs phase 1 in a single transaction with all reads issued
// before any write.
func (s *service) reserve(ctx context.Context, req CheckoutRequest) (*reservationState, error) {
	var state reservationState
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.eventsRepo.WithTx(tx)

		event, err := repo.FindByIDForUpdate(ctx, req.EventID)
		if err != nil {
			return err
		}
		organiser, err := repo.FindOrganiser(ctx, event.OrganiserID)
		if err != nil {
			return err
		}

		now := time.Now()
		if !event.Published {
			return pkgerrors.New(pkgerrors.CodePrecondition, "event is not published")
		}
		if !event.RegistrationOpenAt(now) {
			return pkgerrors.New(pkgerrors.CodePrecondition, "event registration has closed")
		}
		if !event.PaymentsActive {
			return pkgerrors.New(pkgerrors.CodePrecondition, "payments are not enabled for this event")
		}
		if event.PriceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "event has an invalid ticket price")
		}
		if event.Vacancy < req.Quantity {
			return pkgerrors.New(pkgerrors.CodePrecondition, "not enough tickets left")
		}
		if organiser.StripeAccountID == nil || *organiser.StripeAccountID == "" {
			return pkgerrors.New(pkgerrors.CodePrecondition, "organiser payment account is not connected")
		}

		if err := repo.AdjustVacancy(ctx, event.ID, -req.Quantity); err != nil {
			return err
		}
		if !organiser.StripeAccountActive {
			if err := repo.ActivateOrganiserAccount(ctx, organiser.ID); err != nil {
				return err
			}
			organiser.StripeAccountActive = true
		}

		event.Vacancy -= req.Quantity
		state = reservationState{event: *event, organiser: *organiser}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *service) createSessionWithRetry(ctx context.Context, req CheckoutRequest, state *reservationState) (*CheckoutResult, error) {
	params := s.buildSessionParams(req, state)

	var created *stripe.CheckoutSession
	err := retry.Do(ctx, s.newBackoff(), func(ctx context.Context) error {
		sess, callErr := s.stripe.CreateSession(ctx, params)
		if callErr != nil {
			classified := classifyStripeErr(callErr)
			if pkgerrors.IsCode(classified, pkgerrors.CodeDependency) {
				return retry.RetryableError(classified)
			}
			return classified
		}
		created = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		CheckoutSessionID: created.ID,
		CheckoutURL:       created.URL,
		AmountCents:       created.AmountTotal,
	}, nil
}

// compensate re-reads current vacancy under lock and adds the reserved
// quantity back; vacancy may have moved since phase 1.
func (s *service) compensate(ctx context.Context, eventID uuid.UUID, quantity int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.eventsRepo.WithTx(tx)
		event, err := repo.FindByIDForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		restock := quantity
		if event.Vacancy+restock > event.Capacity {
			restock = event.Capacity - event.Vacancy
		}
		if restock <= 0 {
			return nil
		}
		return repo.AdjustVacancy(ctx, eventID, restock)
	})
}

func (s *service) buildSessionParams(req CheckoutRequest, state *reservationState) *stripe.CheckoutSessionParams {
	event := state.event
	amount := event.PriceCents
	expiry := time.Now().Add(s.cfg.CheckoutExpiry)

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ExpiresAt:  stripe.Int64(expiry.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(int64(req.Quantity)),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(event.Name),
					},
				},
			},
		},
		CustomFields: []*stripe.CheckoutSessionCustomFieldParams{
			{
				Key:  stripe.String(customFieldFullName),
				Type: stripe.String("text"),
				Label: &stripe.CheckoutSessionCustomFieldLabelParams{
					Type:   stripe.String("custom"),
					Custom: stripe.String("Full name"),
				},
			},
			{
				Key:      stripe.String(customFieldPhone),
				Type:     stripe.String("text"),
				Optional: stripe.Bool(true),
				Label: &stripe.CheckoutSessionCustomFieldLabelParams{
					Type:   stripe.String("custom"),
					Custom: stripe.String("Phone number"),
				},
			},
		},
	}

	if event.PromoCodesActive {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	if event.StripeFeeToCustomer {
		surcharge := pkgstripe.SurchargeCents(amount * int64(req.Quantity))
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					DisplayName: stripe.String("Card processing fee"),
					Type:        stripe.String("fixed_amount"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(surcharge),
						Currency: stripe.String(s.cfg.Currency),
					},
				},
			},
		}
	}

	if req.DeferCapture {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String("manual"),
		}
	}

	if state.organiser.StripeAccountID != nil {
		params.SetStripeAccount(*state.organiser.StripeAccountID)
	}
	params.SetIdempotencyKey(req.FulfilmentSessionID.String())

	params.AddMetadata(MetaEventID, req.EventID.String())
	params.AddMetadata(MetaIsPrivate, strconv.FormatBool(req.IsPrivate))
	params.AddMetadata(MetaQuantity, strconv.Itoa(req.Quantity))
	params.AddMetadata(MetaCompleteFulfilmentSession, strconv.FormatBool(req.CompleteFulfilmentSession))
	params.AddMetadata(MetaFulfilmentSessionID, req.FulfilmentSessionID.String())
	params.AddMetadata(MetaEndFulfilmentEntityID, req.EndFulfilmentEntityID.String())

	return params
}

func classifyStripeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe unavailable")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stripe rejected checkout creation")
	}
	// Network-level failures arrive untyped.
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling stripe")
}
