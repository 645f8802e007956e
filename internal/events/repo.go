package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes the narrow event/organiser surface the fulfilment
// engine consumes. Event CRUD beyond this lives elsewhere.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindOrganiser(ctx context.Context, organiserID uuid.UUID) (*models.User, error)
	AdjustVacancy(ctx context.Context, id uuid.UUID, delta int) error
	ActivateOrganiserAccount(ctx context.Context, organiserID uuid.UUID) error
	MetadataForUpdate(ctx context.Context, eventID uuid.UUID) (*models.EventMetadata, error)
	SaveMetadata(ctx context.Context, meta *models.EventMetadata) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading event")
	}
	return &event, nil
}

func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking event")
	}
	return &event, nil
}

func (r *repositoryImpl) FindOrganiser(ctx context.Context, organiserID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", organiserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organiser not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading organiser")
	}
	return &user, nil
}

func (r *repositoryImpl) AdjustVacancy(ctx context.Context, id uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND vacancy + ? >= 0", id, delta).
		UpdateColumn("vacancy", gorm.Expr("vacancy + ?", delta))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "adjusting vacancy")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "vacancy adjustment rejected")
	}
	return nil
}

func (r *repositoryImpl) ActivateOrganiserAccount(ctx context.Context, organiserID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND stripe_account_active = ?", organiserID, false).
		UpdateColumn("stripe_account_active", true)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "activating payment account")
	}
	return nil
}

// MetadataForUpdate locks the per-event ledger row, creating it on first
// use so callers can always append.
func (r *repositoryImpl) MetadataForUpdate(ctx context.Context, eventID uuid.UUID) (*models.EventMetadata, error) {
	var meta models.EventMetadata
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&meta, "event_id = ?", eventID).Error
	if err == nil {
		return &meta, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking event metadata")
	}

	meta = models.EventMetadata{EventID: eventID}
	if err := r.db.WithContext(ctx).Create(&meta).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating event metadata")
	}
	return &meta, nil
}

func (r *repositoryImpl) SaveMetadata(ctx context.Context, meta *models.EventMetadata) error {
	if err := r.db.WithContext(ctx).Save(meta).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving event metadata")
	}
	return nil
}
