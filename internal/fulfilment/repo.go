package fulfilment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"gorm.io/gorm"
)

// Repository persists fulfilment sessions and their ordered entities. Only
// the navigation engine mutates a session after the builder creates it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSession(ctx context.Context, session *models.FulfilmentSession) error
	FindSession(ctx context.Context, id uuid.UUID) (*models.FulfilmentSession, error)
	FindEntity(ctx context.Context, sessionID, entityID uuid.UUID) (*models.FulfilmentEntity, error)
	SaveEntity(ctx context.Context, entity *models.FulfilmentEntity) error
	SetCurrentIndex(ctx context.Context, sessionID uuid.UUID, from, to int) error
	MarkSessionCompleted(ctx context.Context, sessionID uuid.UUID, at time.Time) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	FindStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.FulfilmentSession, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a fulfilment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateSession(ctx context.Context, session *models.FulfilmentSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating fulfilment session")
	}
	return nil
}

func (r *repositoryImpl) FindSession(ctx context.Context, id uuid.UUID) (*models.FulfilmentSession, error) {
	var session models.FulfilmentSession
	err := r.db.WithContext(ctx).
		Preload("Entities", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fulfilment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading fulfilment session")
	}
	return &session, nil
}

func (r *repositoryImpl) FindEntity(ctx context.Context, sessionID, entityID uuid.UUID) (*models.FulfilmentEntity, error) {
	var entity models.FulfilmentEntity
	err := r.db.WithContext(ctx).
		First(&entity, "id = ? AND session_id = ?", entityID, sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fulfilment entity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading fulfilment entity")
	}
	return &entity, nil
}

func (r *repositoryImpl) SaveEntity(ctx context.Context, entity *models.FulfilmentEntity) error {
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving fulfilment entity")
	}
	return nil
}

// SetCurrentIndex moves the cursor only when it still sits at from, so
// two racing advances cannot collapse into one.
func (r *repositoryImpl) SetCurrentIndex(ctx context.Context, sessionID uuid.UUID, from, to int) error {
	result := r.db.WithContext(ctx).
		Model(&models.FulfilmentSession{}).
		Where("id = ? AND current_index = ?", sessionID, from).
		UpdateColumn("current_index", to)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "advancing fulfilment session")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "session cursor moved concurrently")
	}
	return nil
}

// MarkSessionCompleted stamps completed_at once; repeat calls are no-ops.
func (r *repositoryImpl) MarkSessionCompleted(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.FulfilmentSession{}).
		Where("id = ? AND completed_at IS NULL", sessionID).
		UpdateColumn("completed_at", at).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing fulfilment session")
	}
	return nil
}

func (r *repositoryImpl) DeleteSession(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Select("Entities").
		Delete(&models.FulfilmentSession{ID: id}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting fulfilment session")
	}
	return nil
}

// FindStaleSessions lists incomplete sessions untouched since the cutoff,
// oldest first, for the abandoned-session sweep.
func (r *repositoryImpl) FindStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.FulfilmentSession, error) {
	var sessions []models.FulfilmentSession
	query := r.db.WithContext(ctx).
		Preload("Entities", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("completed_at IS NULL AND updated_at < ?", cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stale fulfilment sessions")
	}
	return sessions, nil
}
