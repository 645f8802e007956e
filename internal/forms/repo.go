package forms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"gorm.io/gorm"
)

// Repository exposes form and form-response persistence for the
// fulfilment engine. Responses start as drafts and are promoted to
// submitted when the owning session completes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForm(ctx context.Context, id uuid.UUID) (*models.Form, error)
	FindResponse(ctx context.Context, id uuid.UUID) (*models.FormResponse, error)
	CreateResponse(ctx context.Context, response *models.FormResponse) error
	SaveResponse(ctx context.Context, response *models.FormResponse) error
	PromoteResponses(ctx context.Context, ids []uuid.UUID, now time.Time) error
	DeleteDraftResponses(ctx context.Context, ids []uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a forms repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindForm(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	var form models.Form
	err := r.db.WithContext(ctx).First(&form, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "form not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading form")
	}
	return &form, nil
}

func (r *repositoryImpl) FindResponse(ctx context.Context, id uuid.UUID) (*models.FormResponse, error) {
	var response models.FormResponse
	err := r.db.WithContext(ctx).First(&response, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "form response not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading form response")
	}
	return &response, nil
}

func (r *repositoryImpl) CreateResponse(ctx context.Context, response *models.FormResponse) error {
	if err := r.db.WithContext(ctx).Create(response).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating form response")
	}
	return nil
}

func (r *repositoryImpl) SaveResponse(ctx context.Context, response *models.FormResponse) error {
	if err := r.db.WithContext(ctx).Save(response).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving form response")
	}
	return nil
}

func (r *repositoryImpl) PromoteResponses(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.FormResponse{}).
		Where("id IN ? AND submitted = ?", ids, false).
		UpdateColumns(map[string]any{"submitted": true, "submitted_at": now}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promoting form responses")
	}
	return nil
}

func (r *repositoryImpl) DeleteDraftResponses(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ? AND submitted = ?", ids, false).
		Delete(&models.FormResponse{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting draft form responses")
	}
	return nil
}
