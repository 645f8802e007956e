package fulfilment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/checkout"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/internal/forms"
	"github.com/owya490/sportshub-backend/pkg/config"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionInfo summarises a session's step sequence for the client.
type SessionInfo struct {
	SessionID    uuid.UUID                    `json:"sessionId"`
	Types        []enums.FulfilmentEntityType `json:"types"`
	EntityIDs    []uuid.UUID                  `json:"entityIds"`
	CurrentIndex int                          `json:"currentIndex"`
	NumTickets   int                          `json:"numTickets"`
	Completed    bool                         `json:"completed"`
}

// NavStep is the result of advancing a session. URL is nil when there is
// nothing further to redirect to.
type NavStep struct {
	URL   *string `json:"url"`
	Index int     `json:"index"`
	Total int     `json:"total"`
}

// Service is the fulfilment workflow engine: builds sessions and drives
// navigation over their persisted step sequence.
type Service interface {
	InitSession(ctx context.Context, req InitSessionRequest) (*models.FulfilmentSession, error)
	GetSessionInfo(ctx context.Context, sessionID uuid.UUID) (*SessionInfo, error)
	GetNext(ctx context.Context, sessionID, currentEntityID uuid.UUID) (*models.FulfilmentEntity, error)
	GetPrev(ctx context.Context, sessionID, currentEntityID uuid.UUID) (*models.FulfilmentEntity, error)
	ExecNext(ctx context.Context, sessionID uuid.UUID) (*NavStep, error)
	Complete(ctx context.Context, sessionID, entityID uuid.UUID) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
	GetEntity(ctx context.Context, sessionID, entityID uuid.UUID) (*models.FulfilmentEntity, error)
	SaveFormAnswers(ctx context.Context, sessionID, entityID uuid.UUID, answers types.FormAnswers) (uuid.UUID, error)
	AttachWaitlistEntry(ctx context.Context, sessionID, entityID, entryID uuid.UUID) error
}

type service struct {
	tx         txRunner
	repo       Repository
	eventsRepo events.Repository
	formsRepo  forms.Repository
	checkout   checkout.Service
	urls       config.URLConfig
	logg       *logger.Logger
}

// NewService builds the fulfilment engine.
func NewService(
	tx txRunner,
	repo Repository,
	eventsRepo events.Repository,
	formsRepo forms.Repository,
	checkoutSvc checkout.Service,
	urls config.URLConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("fulfilment repository required")
	}
	if eventsRepo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if formsRepo == nil {
		return nil, fmt.Errorf("forms repository required")
	}
	if checkoutSvc == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		eventsRepo: eventsRepo,
		formsRepo:  formsRepo,
		checkout:   checkoutSvc,
		urls:       urls,
		logg:       logg,
	}, nil
}

func (s *service) GetSessionInfo(ctx context.Context, sessionID uuid.UUID) (*SessionInfo, error) {
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byID := entitiesByID(session)
	orderedTypes := make([]enums.FulfilmentEntityType, 0, len(session.EntityIDs))
	ids := make([]uuid.UUID, 0, len(session.EntityIDs))
	for _, id := range session.EntityIDs {
		entity, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "session entity order references a missing entity")
		}
		orderedTypes = append(orderedTypes, entity.Type)
		ids = append(ids, id)
	}

	return &SessionInfo{
		SessionID:    session.ID,
		Types:        orderedTypes,
		EntityIDs:    ids,
		CurrentIndex: session.CurrentIndex,
		NumTickets:   session.NumTickets,
		Completed:    session.Completed(),
	}, nil
}

// GetNext returns the entity after currentEntityID, nil when the current
// entity is the last, and nil when the current entity's exit gate is not
// satisfied yet. The gated case is a success: the caller retries later.
func (s *service) GetNext(ctx context.Context, sessionID, currentEntityID uuid.UUID) (*models.FulfilmentEntity, error) {
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(session.EntityIDs, currentEntityID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entity is not part of this session")
	}

	byID := entitiesByID(session)
	current := byID[currentEntityID]
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session entity order references a missing entity")
	}

	ok, err := s.canLeave(ctx, current)
	if err != nil {
		return nil, err
	}
	if !ok || idx == len(session.EntityIDs)-1 {
		return nil, nil
	}
	return byID[session.EntityIDs[idx+1]], nil
}

// GetPrev is symmetric to GetNext without hook evaluation; stepping back
// is always permitted.
func (s *service) GetPrev(ctx context.Context, sessionID, currentEntityID uuid.UUID) (*models.FulfilmentEntity, error) {
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(session.EntityIDs, currentEntityID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entity is not part of this session")
	}
	if idx == 0 {
		return nil, nil
	}
	return entitiesByID(session)[session.EntityIDs[idx-1]], nil
}

// ExecNext advances the persisted cursor. Advancing past the final entity
// is a no-op that reports the last index; a gated step reports the current
// index without advancing. The read, the gate check and the cursor write
// share one transaction, and the write only applies when the cursor still
// sits where it was read.
func (s *service) ExecNext(ctx context.Context, sessionID uuid.UUID) (*NavStep, error) {
	var step *NavStep
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindSession(ctx, sessionID)
		if err != nil {
			return err
		}
		total := len(session.EntityIDs)
		idx := session.CurrentIndex
		if idx >= total-1 {
			step = &NavStep{Index: total - 1, Total: total}
			return nil
		}

		byID := entitiesByID(session)
		current := byID[session.EntityIDs[idx]]
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "session entity order references a missing entity")
		}
		ok, err := s.canLeave(ctx, current)
		if err != nil {
			return err
		}
		if !ok {
			step = &NavStep{Index: idx, Total: total}
			return nil
		}

		next := byID[session.EntityIDs[idx+1]]
		if err := repo.SetCurrentIndex(ctx, sessionID, idx, idx+1); err != nil {
			return err
		}
		step = &NavStep{URL: s.entityURL(session, next), Index: idx + 1, Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// Complete marks an entity done. Completing an already-complete entity is
// a successful no-op so duplicate client calls and webhook races are
// harmless. Completing the End entity finalises the session and promotes
// any draft form responses collected along the way.
func (s *service) Complete(ctx context.Context, sessionID, entityID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if indexOf(session.EntityIDs, entityID) < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "entity is not part of this session")
		}

		entity := entitiesByID(session)[entityID]
		if entity == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "session entity order references a missing entity")
		}
		if !entity.Completed {
			entity.Completed = true
			if err := repo.SaveEntity(ctx, entity); err != nil {
				return err
			}
		}
		if entity.Type != enums.FulfilmentEntityTypeEnd {
			return nil
		}

		now := time.Now()
		if err := repo.MarkSessionCompleted(ctx, sessionID, now); err != nil {
			return err
		}
		responseIDs := draftResponseIDs(session)
		return s.formsRepo.WithTx(tx).PromoteResponses(ctx, responseIDs, now)
	})
}

// DeleteSession removes an abandoned session together with any draft form
// responses it collected.
func (s *service) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := s.formsRepo.WithTx(tx).DeleteDraftResponses(ctx, draftResponseIDs(session)); err != nil {
			return err
		}
		return repo.DeleteSession(ctx, sessionID)
	})
}

func (s *service) GetEntity(ctx context.Context, sessionID, entityID uuid.UUID) (*models.FulfilmentEntity, error) {
	return s.repo.FindEntity(ctx, sessionID, entityID)
}

// SaveFormAnswers stores the answers for a forms step as a draft response
// and attaches the response id to the entity. Re-submitting overwrites the
// draft in place.
func (s *service) SaveFormAnswers(ctx context.Context, sessionID, entityID uuid.UUID, answers types.FormAnswers) (uuid.UUID, error) {
	var responseID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		formsRepo := s.formsRepo.WithTx(tx)

		entity, err := repo.FindEntity(ctx, sessionID, entityID)
		if err != nil {
			return err
		}
		if entity.Type != enums.FulfilmentEntityTypeForms || entity.Info.Forms == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "entity does not accept form answers")
		}
		info := entity.Info.Forms

		if info.FormResponseID != nil {
			response, err := formsRepo.FindResponse(ctx, *info.FormResponseID)
			if err != nil {
				return err
			}
			if response.Submitted {
				return pkgerrors.New(pkgerrors.CodeConflict, "form response has already been submitted")
			}
			response.Answers = answers
			if err := formsRepo.SaveResponse(ctx, response); err != nil {
				return err
			}
			responseID = response.ID
			return nil
		}

		response := &models.FormResponse{
			ID:      uuid.New(),
			FormID:  info.FormID,
			EventID: info.EventID,
			Answers: answers,
		}
		if err := formsRepo.CreateResponse(ctx, response); err != nil {
			return err
		}
		info.FormResponseID = &response.ID
		responseID = response.ID
		return repo.SaveEntity(ctx, entity)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return responseID, nil
}

// AttachWaitlistEntry records the waitlist entry created for a waitlist
// step and marks the step done.
func (s *service) AttachWaitlistEntry(ctx context.Context, sessionID, entityID, entryID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		entity, err := repo.FindEntity(ctx, sessionID, entityID)
		if err != nil {
			return err
		}
		if entity.Type != enums.FulfilmentEntityTypeWaitlist || entity.Info.Waitlist == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "entity does not accept waitlist entries")
		}
		entity.Info.Waitlist.WaitlistEntryID = &entryID
		entity.Completed = true
		return repo.SaveEntity(ctx, entity)
	})
}

// entityURL resolves the browser destination for a step. Payment and End
// steps carry their own URLs; everything else resumes in the app.
func (s *service) entityURL(session *models.FulfilmentSession, entity *models.FulfilmentEntity) *string {
	if entity == nil {
		return nil
	}
	var url string
	switch entity.Type {
	case enums.FulfilmentEntityTypeStripe, enums.FulfilmentEntityTypeDelayedStripe:
		if entity.Info.Stripe != nil {
			url = entity.Info.Stripe.URL
		}
	case enums.FulfilmentEntityTypeEnd:
		if entity.Info.End != nil {
			url = entity.Info.End.URL
		}
	default:
		url = s.urls.ResumeURL(session.ID.String(), entity.ID.String())
	}
	if url == "" {
		return nil
	}
	return &url
}

func entitiesByID(session *models.FulfilmentSession) map[uuid.UUID]*models.FulfilmentEntity {
	byID := make(map[uuid.UUID]*models.FulfilmentEntity, len(session.Entities))
	for i := range session.Entities {
		byID[session.Entities[i].ID] = &session.Entities[i]
	}
	return byID
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}

func draftResponseIDs(session *models.FulfilmentSession) []uuid.UUID {
	var ids []uuid.UUID
	for _, entity := range session.Entities {
		if entity.Type == enums.FulfilmentEntityTypeForms &&
			entity.Info.Forms != nil &&
			entity.Info.Forms.FormResponseID != nil {
			ids = append(ids, *entity.Info.Forms.FormResponseID)
		}
	}
	return ids
}
