package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxOrganiserID contextKey = "organiser_id"
	ctxEmail       contextKey = "organiser_email"
)

// OrganiserIDFromContext returns the authenticated organiser's id.
func OrganiserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := ctx.Value(ctxOrganiserID).(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// EmailFromContext returns the authenticated organiser's email, when present.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxEmail).(string)
	return email, ok && email != ""
}
