package controllers

import (
	"context"
	"net/http"

	"github.com/owya490/sportshub-backend/api/middleware"
	"github.com/owya490/sportshub-backend/api/responses"
	"github.com/owya490/sportshub-backend/api/validators"
	"github.com/owya490/sportshub-backend/internal/bookings"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
)

type decisionFunc func(ctx context.Context, req bookings.DecisionRequest) (*bookings.Decision, error)

// BookingApprove captures the held payment and approves the order.
func BookingApprove(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	var decide decisionFunc
	if svc != nil {
		decide = svc.Approve
	}
	return bookingDecision(decide, logg)
}

// BookingReject cancels the held payment and rejects the order.
func BookingReject(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	var decide decisionFunc
	if svc != nil {
		decide = svc.Reject
	}
	return bookingDecision(decide, logg)
}

func bookingDecision(decide decisionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if decide == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}

		organiserID, ok := middleware.OrganiserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "organiser identity missing"))
			return
		}
		eventID, err := validators.UUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := decide(r.Context(), bookings.DecisionRequest{
			EventID:     eventID,
			OrganiserID: organiserID,
			OrderID:     orderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}
