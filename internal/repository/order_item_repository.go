package repository

import (
	"context"
	"order_dispatch/internal/models"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderItemRepository interface {
	CreateBatch(ctx context.Context, items []models.OrderItem) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
}

type orderItemRepository struct {
	base
}

func NewOrderItemRepository(db *gorm.DB, getter *trmgorm.CtxGetter) OrderItemRepository {
	return &orderItemRepository{base: newBase(db, getter)}
}

func (r *orderItemRepository) CreateBatch(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&items).Error
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
