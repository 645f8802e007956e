package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func newTestCronService(t *testing.T, store *stubRedisStore, jobs ...Job) *Service {
	t.Helper()
	lock, err := NewRedisLock(store, "sh:lock:cron", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestRunCycleExecutesJobsInOrder(t *testing.T) {
	t.Parallel()
	first := &recordingJob{name: "first"}
	second := &recordingJob{name: "second"}
	svc := newTestCronService(t, newStubRedisStore(), first, second)

	svc.runCycle(context.Background())

	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", first.runs, second.runs)
	}
}

func TestRunCycleReleasesLock(t *testing.T) {
	t.Parallel()
	store := newStubRedisStore()
	svc := newTestCronService(t, store, &recordingJob{name: "job"})

	svc.runCycle(context.Background())

	if _, held := store.values["sh:lock:cron"]; held {
		t.Fatal("lock must be released after the cycle")
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()
	store := newStubRedisStore()
	store.values["sh:lock:cron"] = "someone-else"
	job := &recordingJob{name: "job"}
	svc := newTestCronService(t, store, job)

	svc.runCycle(context.Background())

	if job.runs != 0 {
		t.Fatal("jobs must not run when the lock is held elsewhere")
	}
	if store.values["sh:lock:cron"] != "someone-else" {
		t.Fatal("foreign lock must be left untouched")
	}
}

func TestRunCycleContinuesPastJobFailure(t *testing.T) {
	t.Parallel()
	failing := &recordingJob{name: "failing", err: errors.New("boom")}
	healthy := &recordingJob{name: "healthy"}
	svc := newTestCronService(t, newStubRedisStore(), failing, healthy)

	svc.runCycle(context.Background())

	if healthy.runs != 1 {
		t.Fatal("a failing job must not stop the rest of the cycle")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	job := &recordingJob{name: "job"}
	svc := newTestCronService(t, newStubRedisStore(), job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil, &recordingJob{name: "job"})
	registry.Register(nil)
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected one registered job, got %d", got)
	}
}
