package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/metrics"
)

// ServiceParams carries the dependencies for the cron runner.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     *RedisLock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service drives registered jobs on a fixed interval, guarded by a
// distributed lock so only one worker replica runs a cycle at a time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     *RedisLock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService validates params and builds the cron runner.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}, nil
}

// Run executes an immediate cycle, then one cycle per interval tick until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "acquiring cron lock", err)
		return
	}
	if !acquired {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "releasing cron lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	start := time.Now()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron_job",
	})
	err := job.Run(logCtx)
	duration := time.Since(start)

	s.metrics.ObserveDuration(job.Name(), duration)
	logCtx = s.logg.WithField(logCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(logCtx, "cron job failed", err)
		return
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Info(logCtx, "cron job completed")
}
