package waitlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"gorm.io/gorm"
)

// Repository persists waitlist entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.WaitlistEntry) error
	FindByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.WaitlistEntry, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.WaitlistEntry, error)
	MarkNotified(ctx context.Context, ids []uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a waitlist repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating waitlist entry")
	}
	return nil
}

func (r *repositoryImpl) FindByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.db.WithContext(ctx).
		First(&entry, "event_id = ? AND email = ?", eventID, email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "waitlist entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading waitlist entry")
	}
	return &entry, nil
}

func (r *repositoryImpl) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing waitlist entries")
	}
	return entries, nil
}

func (r *repositoryImpl) MarkNotified(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("id IN ?", ids).
		UpdateColumn("notified", true).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking waitlist entries notified")
	}
	return nil
}
