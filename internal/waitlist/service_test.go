package waitlist

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubEventsRepo struct {
	event *models.Event
}

func (s *stubEventsRepo) WithTx(tx *gorm.DB) events.Repository { return s }

func (s *stubEventsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if s.event == nil || s.event.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	copied := *s.event
	return &copied, nil
}

func (s *stubEventsRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.FindByID(ctx, id)
}

func (s *stubEventsRepo) FindOrganiser(ctx context.Context, organiserID uuid.UUID) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organiser not found")
}

func (s *stubEventsRepo) AdjustVacancy(ctx context.Context, id uuid.UUID, delta int) error {
	return nil
}

func (s *stubEventsRepo) ActivateOrganiserAccount(ctx context.Context, organiserID uuid.UUID) error {
	return nil
}

func (s *stubEventsRepo) MetadataForUpdate(ctx context.Context, eventID uuid.UUID) (*models.EventMetadata, error) {
	return &models.EventMetadata{EventID: eventID}, nil
}

func (s *stubEventsRepo) SaveMetadata(ctx context.Context, meta *models.EventMetadata) error {
	return nil
}

func newTestService(t *testing.T) (*service, *stubEventsRepo, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:waitlist_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.WaitlistEntry{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	eventsRepo := &stubEventsRepo{}
	svc := &service{
		repo:       NewRepository(db),
		eventsRepo: eventsRepo,
		logg:       logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	}
	return svc, eventsRepo, db
}

func TestJoinCreatesEntry(t *testing.T) {
	svc, eventsRepo, _ := newTestService(t)
	eventsRepo.event = &models.Event{ID: uuid.New(), WaitlistEnabled: true}

	entry, err := svc.Join(context.Background(), JoinRequest{
		EventID:  eventsRepo.event.ID,
		Email:    "  Jordan@Example.COM ",
		FullName: " Jordan Lee ",
		Phone:    "0400000000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Email != "jordan@example.com" {
		t.Fatalf("email should be normalised, got %q", entry.Email)
	}
	if entry.FullName != "Jordan Lee" {
		t.Fatalf("name should be trimmed, got %q", entry.FullName)
	}
}

func TestJoinIsIdempotentPerEmail(t *testing.T) {
	svc, eventsRepo, db := newTestService(t)
	eventsRepo.event = &models.Event{ID: uuid.New(), WaitlistEnabled: true}

	first, err := svc.Join(context.Background(), JoinRequest{
		EventID:  eventsRepo.event.ID,
		Email:    "jordan@example.com",
		FullName: "Jordan Lee",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Join(context.Background(), JoinRequest{
		EventID:  eventsRepo.event.ID,
		Email:    "JORDAN@example.com",
		FullName: "Jordan Lee",
	})
	if err != nil {
		t.Fatalf("repeat join must succeed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("repeat join must return the existing entry")
	}

	var count int64
	if err := db.Model(&models.WaitlistEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single entry, got %d", count)
	}
}

func TestJoinRequiresWaitlistEnabled(t *testing.T) {
	svc, eventsRepo, _ := newTestService(t)
	eventsRepo.event = &models.Event{ID: uuid.New()}

	_, err := svc.Join(context.Background(), JoinRequest{
		EventID:  eventsRepo.event.ID,
		Email:    "jordan@example.com",
		FullName: "Jordan Lee",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodePrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestJoinValidation(t *testing.T) {
	svc, eventsRepo, _ := newTestService(t)
	eventsRepo.event = &models.Event{ID: uuid.New(), WaitlistEnabled: true}

	tests := []struct {
		name string
		req  JoinRequest
	}{
		{name: "missing event", req: JoinRequest{Email: "a@b.c", FullName: "A"}},
		{name: "bad email", req: JoinRequest{EventID: eventsRepo.event.ID, Email: "nope", FullName: "A"}},
		{name: "missing name", req: JoinRequest{EventID: eventsRepo.event.ID, Email: "a@b.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Join(context.Background(), tt.req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestListForEventRequiresOrganiser(t *testing.T) {
	svc, eventsRepo, _ := newTestService(t)
	organiserID := uuid.New()
	eventsRepo.event = &models.Event{ID: uuid.New(), OrganiserID: organiserID, WaitlistEnabled: true}

	if _, err := svc.ListForEvent(context.Background(), eventsRepo.event.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := svc.Join(context.Background(), JoinRequest{
		EventID:  eventsRepo.event.ID,
		Email:    "jordan@example.com",
		FullName: "Jordan Lee",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := svc.ListForEvent(context.Background(), eventsRepo.event.ID, organiserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
}
