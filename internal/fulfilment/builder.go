package fulfilment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/checkout"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// InitSessionRequest asks for a new fulfilment session of the given type.
type InitSessionRequest struct {
	EventID    uuid.UUID
	Type       enums.FulfilmentSessionType
	NumTickets int
}

// InitSession builds and persists a session for the requested workflow.
// The step sequence is: one forms step per ticket when the event collects
// a form (booking flows only), then the type-specific allocation step,
// then the terminal step.
// Entity ids are generated up front because the payment step's cancel URL
// must reference the preceding step by id.
func (s *service) InitSession(ctx context.Context, req InitSessionRequest) (*models.FulfilmentSession, error) {
	if req.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if !req.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown fulfilment session type")
	}
	if req.NumTickets < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket count must be positive")
	}

	event, err := s.eventsRepo.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.PausedBookings {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "bookings are paused for this event")
	}
	switch req.Type {
	case enums.FulfilmentSessionTypeCheckout:
		if event.RequiresApproval {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "event requires booking approval")
		}
	case enums.FulfilmentSessionTypeBookingApproval:
		if !event.RequiresApproval {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "event does not use booking approval")
		}
	case enums.FulfilmentSessionTypeWaitlist:
		if !event.WaitlistEnabled {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "event does not have a waitlist")
		}
	}

	sessionID := uuid.New()
	entities := buildEntitySkeleton(sessionID, event, req)
	endEntity := &entities[len(entities)-1]
	endEntity.Info = types.FulfilmentEntityInfo{
		Type: enums.FulfilmentEntityTypeEnd,
		End:  &types.EndEntityInfo{URL: s.urls.EventSuccessURL(event.ID.String())},
	}

	if paymentIdx := paymentIndex(entities); paymentIdx >= 0 {
		if err := s.resolvePaymentEntity(ctx, sessionID, event, req, entities, paymentIdx, endEntity.ID); err != nil {
			return nil, err
		}
	}

	ids := make([]uuid.UUID, len(entities))
	for i := range entities {
		ids[i] = entities[i].ID
	}
	session := &models.FulfilmentSession{
		ID:            sessionID,
		EventID:       event.ID,
		Type:          req.Type,
		NumTickets:    req.NumTickets,
		EventSnapshot: snapshotEvent(event),
		EntityIDs:     ids,
		Entities:      entities,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"fulfilment_session_id": session.ID.String(),
		"event_id":              event.ID.String(),
		"type":                  session.Type.String(),
		"num_tickets":           session.NumTickets,
	})
	s.logg.Info(logCtx, "fulfilment session created")
	return session, nil
}

// buildEntitySkeleton lays out the unresolved step sequence with fresh ids
// and positions. The payment step keeps a placeholder payload until the
// checkout resource exists.
func buildEntitySkeleton(sessionID uuid.UUID, event *models.Event, req InitSessionRequest) []models.FulfilmentEntity {
	var entities []models.FulfilmentEntity
	appendEntity := func(entityType enums.FulfilmentEntityType, info types.FulfilmentEntityInfo) {
		entities = append(entities, models.FulfilmentEntity{
			ID:        uuid.New(),
			SessionID: sessionID,
			Type:      entityType,
			Position:  len(entities),
			Info:      info,
		})
	}

	// Waitlist sessions collect contact details on the waitlist step
	// itself; forms steps belong to the booking flows only.
	if event.FormID != nil && req.Type != enums.FulfilmentSessionTypeWaitlist {
		for i := 0; i < req.NumTickets; i++ {
			appendEntity(enums.FulfilmentEntityTypeForms, types.FulfilmentEntityInfo{
				Type:  enums.FulfilmentEntityTypeForms,
				Forms: &types.FormsEntityInfo{FormID: *event.FormID, EventID: event.ID},
			})
		}
	}

	switch req.Type {
	case enums.FulfilmentSessionTypeWaitlist:
		appendEntity(enums.FulfilmentEntityTypeWaitlist, types.FulfilmentEntityInfo{
			Type:     enums.FulfilmentEntityTypeWaitlist,
			Waitlist: &types.WaitlistEntityInfo{EventID: event.ID, TicketCount: req.NumTickets},
		})
	case enums.FulfilmentSessionTypeBookingApproval:
		appendEntity(enums.FulfilmentEntityTypeDelayedStripe, types.FulfilmentEntityInfo{
			Type:   enums.FulfilmentEntityTypeDelayedStripe,
			Stripe: &types.StripeEntityInfo{},
		})
	default:
		appendEntity(enums.FulfilmentEntityTypeStripe, types.FulfilmentEntityInfo{
			Type:   enums.FulfilmentEntityTypeStripe,
			Stripe: &types.StripeEntityInfo{},
		})
	}

	appendEntity(enums.FulfilmentEntityTypeEnd, types.FulfilmentEntityInfo{
		Type: enums.FulfilmentEntityTypeEnd,
	})
	return entities
}

// resolvePaymentEntity reserves inventory and creates the hosted checkout
// through the reservation coordinator, then fills in the payment step. The
// cancel URL resumes the session at the preceding step, or falls back to
// the event page when payment is the first step.
func (s *service) resolvePaymentEntity(
	ctx context.Context,
	sessionID uuid.UUID,
	event *models.Event,
	req InitSessionRequest,
	entities []models.FulfilmentEntity,
	paymentIdx int,
	endEntityID uuid.UUID,
) error {
	cancelURL := s.urls.EventURL(event.ID.String())
	if paymentIdx > 0 {
		cancelURL = s.urls.ResumeURL(sessionID.String(), entities[paymentIdx-1].ID.String())
	}

	result, err := s.checkout.CreateCheckout(ctx, checkout.CheckoutRequest{
		EventID:                   event.ID,
		IsPrivate:                 event.IsPrivate,
		Quantity:                  req.NumTickets,
		SuccessURL:                s.urls.ResumeURL(sessionID.String(), endEntityID.String()),
		CancelURL:                 cancelURL,
		CompleteFulfilmentSession: true,
		FulfilmentSessionID:       sessionID,
		EndFulfilmentEntityID:     endEntityID,
		DeferCapture:              req.Type == enums.FulfilmentSessionTypeBookingApproval,
	})
	if err != nil {
		return err
	}

	entities[paymentIdx].Info.Stripe = &types.StripeEntityInfo{
		URL:               result.CheckoutURL,
		CheckoutSessionID: result.CheckoutSessionID,
	}
	return nil
}

func paymentIndex(entities []models.FulfilmentEntity) int {
	for i, entity := range entities {
		if entity.Type == enums.FulfilmentEntityTypeStripe ||
			entity.Type == enums.FulfilmentEntityTypeDelayedStripe {
			return i
		}
	}
	return -1
}

func snapshotEvent(event *models.Event) types.EventSnapshot {
	return types.EventSnapshot{
		EventID:              event.ID,
		OrganiserID:          event.OrganiserID,
		Name:                 event.Name,
		PriceCents:           event.PriceCents,
		CapacityAtReserve:    event.Capacity,
		IsPrivate:            event.IsPrivate,
		StripeFeeToCustomer:  event.StripeFeeToCustomer,
		PromoCodesActive:     event.PromoCodesActive,
		FormID:               event.FormID,
		RegistrationDeadline: event.RegistrationDeadline,
	}
}
