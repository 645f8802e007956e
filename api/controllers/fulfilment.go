package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/api/responses"
	"github.com/owya490/sportshub-backend/api/validators"
	"github.com/owya490/sportshub-backend/internal/fulfilment"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/types"
)

type initSessionBody struct {
	EventID    string `json:"eventId" validate:"required,uuid"`
	Type       string `json:"type" validate:"required"`
	NumTickets int    `json:"numTickets" validate:"required,min=1"`
}

type entityStep struct {
	EntityID  string                     `json:"entityId"`
	Type      enums.FulfilmentEntityType `json:"type"`
	Completed bool                       `json:"completed"`
	Info      types.FulfilmentEntityInfo `json:"info"`
}

// InitFulfilmentSession builds a session for the requested workflow and
// returns its step sequence.
func InitFulfilmentSession(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfilment service unavailable"))
			return
		}

		var body initSessionBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := parseBodyUUID(body.EventID, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionType, err := enums.ParseFulfilmentSessionType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session type"))
			return
		}

		session, err := svc.InitSession(r.Context(), fulfilment.InitSessionRequest{
			EventID:    eventID,
			Type:       sessionType,
			NumTickets: body.NumTickets,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.GetSessionInfo(r.Context(), session.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, info)
	}
}

// FulfilmentSessionInfo summarises the session's step sequence.
func FulfilmentSessionInfo(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.UUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		info, err := svc.GetSessionInfo(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

// FulfilmentEntityInfo returns a single step's payload.
func FulfilmentEntityInfo(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, entityID, err := sessionEntityParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entity, err := svc.GetEntity(r.Context(), sessionID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entityStep{
			EntityID:  entity.ID.String(),
			Type:      entity.Type,
			Completed: entity.Completed,
			Info:      entity.Info,
		})
	}
}

// FulfilmentNext peeks at the step after the given one. A null payload
// means there is nothing to move to yet.
func FulfilmentNext(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, entityID, err := sessionEntityParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entity, err := svc.GetNext(r.Context(), sessionID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOptionalEntity(w, entity)
	}
}

// FulfilmentPrev peeks at the step before the given one.
func FulfilmentPrev(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, entityID, err := sessionEntityParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entity, err := svc.GetPrev(r.Context(), sessionID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOptionalEntity(w, entity)
	}
}

// FulfilmentExecNext advances the session's persisted cursor.
func FulfilmentExecNext(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.UUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		step, err := svc.ExecNext(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, step)
	}
}

// FulfilmentComplete marks a step done. Repeat calls are harmless.
func FulfilmentComplete(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, entityID, err := sessionEntityParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Complete(r.Context(), sessionID, entityID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// FulfilmentDelete abandons a session and its draft form responses.
func FulfilmentDelete(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := validators.UUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteSession(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type formAnswersBody struct {
	Answers types.FormAnswers `json:"answers" validate:"required,min=1"`
}

// FulfilmentSaveFormAnswers stores a forms step's answers as a draft
// response.
func FulfilmentSaveFormAnswers(svc fulfilment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, entityID, err := sessionEntityParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body formAnswersBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responseID, err := svc.SaveFormAnswers(r.Context(), sessionID, entityID, body.Answers)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"formResponseId": responseID.String()})
	}
}

func sessionEntityParams(r *http.Request) (sessionID, entityID uuid.UUID, err error) {
	sessionID, err = validators.UUIDParam(r, "sessionId")
	if err != nil {
		return
	}
	entityID, err = validators.UUIDParam(r, "entityId")
	return
}

func writeOptionalEntity(w http.ResponseWriter, entity *models.FulfilmentEntity) {
	if entity == nil {
		responses.WriteSuccess(w, nil)
		return
	}
	responses.WriteSuccess(w, entityStep{
		EntityID:  entity.ID.String(),
		Type:      entity.Type,
		Completed: entity.Completed,
		Info:      entity.Info,
	})
}
