package controllers

import (
	"io"
	"net/http"

	"github.com/owya490/sportshub-backend/api/responses"
	"github.com/owya490/sportshub-backend/internal/webhooks"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// StripeWebhook verifies and dispatches Stripe event deliveries.
func StripeWebhook(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}

		event, err := svc.VerifyAndParse(payload, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithField(ctx, "stripe_event_id", event.ID)
			logg.Info(logCtx, "stripe event processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
