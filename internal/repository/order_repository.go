package repository

import (
	"context"
	"fmt"
	"order_dispatch/internal/models"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// TryLockByID locks the order row unless another transaction already
	// holds it, in which case it returns nil without waiting.
	TryLockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByCustomerID(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error)
	// TransitionStatus moves the order to `to` only while its status is one
	// of `from`. It reports false when no row matched.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.OrderStatus, to models.OrderStatus, fields map[string]interface{}) (bool, error)
	NextOrderNumber(ctx context.Context, day time.Time) (string, error)
}

type orderRepository struct {
	base
}

func NewOrderRepository(db *gorm.DB, getter *trmgorm.CtxGetter) OrderRepository {
	return &orderRepository{base: newBase(db, getter)}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.conn(ctx).Omit("Items").Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.conn(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) TryLockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var orders []models.Order
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("id = ?", id).
		Limit(1).
		Find(&orders).Error
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.conn(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.OrderStatus, to models.OrderStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.conn(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// NextOrderNumber returns ORD_YYYYMMDD_NNN. It must run inside a
// transaction; the advisory lock serializes numbering until commit.
func (r *orderRepository) NextOrderNumber(ctx context.Context, day time.Time) (string, error) {
	db := r.conn(ctx)
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext('order_number'))").Error; err != nil {
		return "", err
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var count int64
	err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", start, start.AddDate(0, 0, 1)).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(day, count+1), nil
}

func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD_%s_%03d", day.Format("20060102"), seq)
}
