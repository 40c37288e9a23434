package repository

import (
	"context"
	"order_dispatch/internal/models"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository appends to the order and assignment audit logs.
type HistoryRepository interface {
	RecordStatus(ctx context.Context, entry *models.OrderStatusHistory) error
	RecordAssignments(ctx context.Context, entries []models.AssignmentHistory) error
	GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	GetAssignmentHistory(ctx context.Context, orderID uuid.UUID) ([]models.AssignmentHistory, error)
}

type historyRepository struct {
	base
}

func NewHistoryRepository(db *gorm.DB, getter *trmgorm.CtxGetter) HistoryRepository {
	return &historyRepository{base: newBase(db, getter)}
}

func (r *historyRepository) RecordStatus(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.conn(ctx).Create(entry).Error
}

func (r *historyRepository) RecordAssignments(ctx context.Context, entries []models.AssignmentHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&entries).Error
}

func (r *historyRepository) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var entries []models.OrderStatusHistory
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&entries).Error
	return entries, err
}

func (r *historyRepository) GetAssignmentHistory(ctx context.Context, orderID uuid.UUID) ([]models.AssignmentHistory, error) {
	var entries []models.AssignmentHistory
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&entries).Error
	return entries, err
}
