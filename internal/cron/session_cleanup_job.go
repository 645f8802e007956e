package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	sessionCleanupJobName = "session-cleanup"
	sessionCleanupBatch   = 200
)

type staleSessionLister interface {
	FindStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.FulfilmentSession, error)
}

type sessionDeleter interface {
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// SessionCleanupJobParams carries the dependencies for the abandoned
// session sweep.
type SessionCleanupJobParams struct {
	Logger   *logger.Logger
	Sessions staleSessionLister
	Deleter  sessionDeleter

	// Cutoff is how long an incomplete session may sit untouched before
	// it is swept away.
	Cutoff time.Duration
}

type sessionCleanupJob struct {
	logg     *logger.Logger
	sessions staleSessionLister
	deleter  sessionDeleter
	cutoff   time.Duration
	now      func() time.Time
}

// NewSessionCleanupJob builds the job that removes abandoned fulfilment
// sessions along with their draft form responses.
func NewSessionCleanupJob(params SessionCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session lister required")
	}
	if params.Deleter == nil {
		return nil, fmt.Errorf("session deleter required")
	}
	if params.Cutoff <= 0 {
		return nil, fmt.Errorf("cutoff must be positive")
	}
	return &sessionCleanupJob{
		logg:     params.Logger,
		sessions: params.Sessions,
		deleter:  params.Deleter,
		cutoff:   params.Cutoff,
		now:      time.Now,
	}, nil
}

func (j *sessionCleanupJob) Name() string {
	return sessionCleanupJobName
}

func (j *sessionCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.cutoff)
	stale, err := j.sessions.FindStaleSessions(ctx, cutoff, sessionCleanupBatch)
	if err != nil {
		return fmt.Errorf("listing stale sessions: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	removed := 0
	for _, session := range stale {
		if err := j.deleter.DeleteSession(ctx, session.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("deleting session %s: %w", session.ID, err))
			continue
		}
		removed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"removed": removed,
		"stale":   len(stale),
	})
	j.logg.Info(logCtx, "stale fulfilment sessions swept")
	return errs
}
