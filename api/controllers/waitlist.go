package controllers

import (
	"net/http"

	"github.com/owya490/sportshub-backend/api/middleware"
	"github.com/owya490/sportshub-backend/api/responses"
	"github.com/owya490/sportshub-backend/api/validators"
	"github.com/owya490/sportshub-backend/internal/fulfilment"
	"github.com/owya490/sportshub-backend/internal/waitlist"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
)

type waitlistJoinBody struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone,omitempty"`
}

// WaitlistJoin places the attendee on the event's waitlist and completes
// the session's waitlist step.
func WaitlistJoin(waitlistSvc waitlist.Service, fulfilmentSvc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if waitlistSvc == nil || fulfilmentSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "waitlist service unavailable"))
			return
		}

		sessionID, entityID, err := sessionEntityParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body waitlistJoinBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entity, err := fulfilmentSvc.GetEntity(r.Context(), sessionID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if entity.Type != enums.FulfilmentEntityTypeWaitlist || entity.Info.Waitlist == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "entity does not accept waitlist entries"))
			return
		}

		entry, err := waitlistSvc.Join(r.Context(), waitlist.JoinRequest{
			EventID:  entity.Info.Waitlist.EventID,
			Email:    body.Email,
			FullName: body.FullName,
			Phone:    body.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fulfilmentSvc.AttachWaitlistEntry(r.Context(), sessionID, entityID, entry.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// WaitlistList returns the event's waitlist for its organiser.
func WaitlistList(svc waitlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "waitlist service unavailable"))
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

		entries, err := svc.ListForEvent(r.Context(), eventID, organiserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
