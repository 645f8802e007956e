package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/enums"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists orders and their tickets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, now time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an order/ticket repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}
	return nil
}

func (r *repositoryImpl) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tickets).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating tickets")
	}
	return nil
}

func (r *repositoryImpl) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Tickets").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return &order, nil
}

func (r *repositoryImpl) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking order")
	}
	return &order, nil
}

// TransitionOrder moves the order from one status to another and mirrors
// the new status onto every ticket, order first. A missed transition
// (wrong current status) surfaces as a conflict.
func (r *repositoryImpl) TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		UpdateColumns(map[string]any{"status": to, "decided_at": now})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "transitioning order")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is not in the expected status")
	}

	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("order_id = ?", orderID).
		UpdateColumn("status", to).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mirroring ticket status")
	}
	return nil
}
