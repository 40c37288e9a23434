package services

import (
	"context"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/metrics"
	"order_dispatch/internal/models"
	"order_dispatch/internal/realtime"
	"order_dispatch/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationService interface {
	Notify(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	OnStatusChange(ctx context.Context, change realtime.StatusChange) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	publisher EventPublisher
	realtime  RealtimePublisher
	now       func() time.Time
}

// NewNotificationService builds the service. publisher and rt may be nil.
func NewNotificationService(repo repository.NotificationRepository, publisher EventPublisher, rt RealtimePublisher) NotificationService {
	return &notificationService{
		repo:      repo,
		publisher: publisher,
		realtime:  rt,
		now:       time.Now,
	}
}

// Notify stores the notification and fans it out. Fan-out failures are
// logged; the stored row is the source of truth.
func (s *notificationService) Notify(ctx context.Context, notification *models.Notification) error {
	const op = "NotificationService.Notify"

	if notification.RecipientID == uuid.Nil {
		return apperrors.Invalid(op, "recipient is required")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now()
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return apperrors.OpError(op, err)
	}
	metrics.NotificationsSent.WithLabelValues(string(notification.Type)).Inc()

	if s.publisher != nil {
		routingKey := string(notification.RecipientType) + "." + string(notification.Type)
		if err := s.publisher.Publish(ctx, routingKey, notification); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("notification_id", notification.ID.String()).Msg("failed to publish notification")
		}
	}
	if s.realtime != nil && notification.OrderID != nil {
		if err := s.realtime.Publish(ctx, *notification.OrderID, "notification", notification); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("notification_id", notification.ID.String()).Msg("failed to push notification")
		}
	}
	return nil
}

func (s *notificationService) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	const op = "NotificationService.ListNotifications"

	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	notifications, err := s.repo.GetByRecipient(ctx, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return notifications, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	const op = "NotificationService.MarkAsRead"

	ok, err := s.repo.MarkAsRead(ctx, id, s.now())
	if err != nil {
		return apperrors.OpError(op, err)
	}
	if !ok {
		return apperrors.NotFound(op, "unread notification not found")
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	const op = "NotificationService.MarkAllAsRead"

	n, err := s.repo.MarkAllAsRead(ctx, recipientID, s.now())
	if err != nil {
		return 0, apperrors.OpError(op, err)
	}
	return n, nil
}

// OnStatusChange tells the customer about a new order status.
func (s *notificationService) OnStatusChange(ctx context.Context, change realtime.StatusChange) error {
	orderID := change.OrderID
	return s.Notify(ctx, &models.Notification{
		RecipientID:   change.CustomerID,
		RecipientType: models.RecipientCustomer,
		OrderID:       &orderID,
		Type:          models.NotificationOrderStatus,
		Title:         "Order update",
		Message:       change.NewStatus.Message(),
		Data: jsonData(map[string]interface{}{
			"old_status": change.OldStatus,
			"new_status": change.NewStatus,
			"changed_at": change.ChangedAt,
		}),
	})
}
