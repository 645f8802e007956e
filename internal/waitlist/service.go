package waitlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
)

// JoinRequest asks to place a person on an event's waitlist.
type JoinRequest struct {
	EventID  uuid.UUID
	Email    string
	FullName string
	Phone    string
}

// Service places interested attendees on event waitlists.
type Service interface {
	Join(ctx context.Context, req JoinRequest) (*models.WaitlistEntry, error)
	ListForEvent(ctx context.Context, eventID, organiserID uuid.UUID) ([]models.WaitlistEntry, error)
}

type service struct {
	repo       Repository
	eventsRepo events.Repository
	logg       *logger.Logger
}

// NewService builds the waitlist service.
func NewService(repo Repository, eventsRepo events.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("waitlist repository required")
	}
	if eventsRepo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, eventsRepo: eventsRepo, logg: logg}, nil
}

// Join records interest in the event. Joining twice with the same email
// returns the existing entry rather than duplicating it.
func (s *service) Join(ctx context.Context, req JoinRequest) (*models.WaitlistEntry, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name required")
	}

	event, err := s.eventsRepo.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.WaitlistEnabled {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "event does not have a waitlist")
	}

	existing, err := s.repo.FindByEventAndEmail(ctx, req.EventID, email)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	entry := &models.WaitlistEntry{
		ID:       uuid.New(),
		EventID:  req.EventID,
		Email:    email,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithEventID(ctx, req.EventID.String())
	s.logg.Info(logCtx, "waitlist entry created")
	return entry, nil
}

// ListForEvent returns the waitlist, organiser only.
func (s *service) ListForEvent(ctx context.Context, eventID, organiserID uuid.UUID) ([]models.WaitlistEntry, error) {
	event, err := s.eventsRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganiserID != organiserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the event organiser can view the waitlist")
	}
	return s.repo.ListForEvent(ctx, eventID)
}
