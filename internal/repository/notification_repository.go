package repository

import (
	"context"
	"order_dispatch/internal/models"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
}

type notificationRepository struct {
	base
}

func NewNotificationRepository(db *gorm.DB, getter *trmgorm.CtxGetter) NotificationRepository {
	return &notificationRepository{base: newBase(db, getter)}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.conn(ctx).Create(notification).Error
}

func (r *notificationRepository) GetByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := r.conn(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.conn(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.conn(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}
