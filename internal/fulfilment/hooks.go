package fulfilment

import (
	"context"

	"github.com/owya490/sportshub-backend/internal/forms"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
)

// canLeave evaluates the entity's exit gate. A false return is not an
// error: the step is simply not satisfied yet and the caller retries once
// it is. Hooks read external state but never mutate the session.
func (s *service) canLeave(ctx context.Context, entity *models.FulfilmentEntity) (bool, error) {
	switch entity.Type {
	case enums.FulfilmentEntityTypeForms:
		return s.formsSatisfied(ctx, entity)
	default:
		// Stripe, DelayedStripe, Waitlist and End steps always permit.
		return true, nil
	}
}

// formsSatisfied requires an attached response that answers every required
// section of the referenced form.
func (s *service) formsSatisfied(ctx context.Context, entity *models.FulfilmentEntity) (bool, error) {
	info := entity.Info.Forms
	if info == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "forms entity has no form payload")
	}
	if info.FormResponseID == nil {
		return false, nil
	}

	form, err := s.formsRepo.FindForm(ctx, info.FormID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "forms entity references a missing form")
		}
		return false, err
	}
	response, err := s.formsRepo.FindResponse(ctx, *info.FormResponseID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "forms entity references a missing response")
		}
		return false, err
	}
	return forms.ResponseComplete(form, response), nil
}
