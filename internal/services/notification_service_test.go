package services

import (
	"context"
	"errors"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/realtime"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return p.err
}

func (p *recordingPublisher) push(_ context.Context, orderID uuid.UUID, eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, orderID.String()+":"+eventType)
	return p.err
}

type realtimeFunc func(ctx context.Context, orderID uuid.UUID, eventType string, v interface{}) error

func (f realtimeFunc) Publish(ctx context.Context, orderID uuid.UUID, eventType string, v interface{}) error {
	return f(ctx, orderID, eventType, v)
}

func TestNotifyFansOut(t *testing.T) {
	st := newStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewNotificationService(fakeNotificationRepo{st}, pub, realtimeFunc(pub.push))
	orderID := uuid.New()

	err := svc.Notify(context.Background(), &models.Notification{
		RecipientID:   uuid.New(),
		RecipientType: models.RecipientRestaurant,
		OrderID:       &orderID,
		Type:          models.NotificationNewAssignment,
		Title:         "New order",
	})
	require.NoError(t, err)

	require.Len(t, st.notifications, 1)
	assert.False(t, st.notifications[0].CreatedAt.IsZero())
	assert.Equal(t, []string{"restaurant.new_assignment"}, pub.keys)
	assert.Equal(t, []string{orderID.String() + ":notification"}, pub.events)
}

func TestNotifyRequiresRecipient(t *testing.T) {
	st := newStore()
	svc := NewNotificationService(fakeNotificationRepo{st}, nil, nil)

	err := svc.Notify(context.Background(), &models.Notification{Type: models.NotificationPayment})
	assert.Equal(t, apperrors.EINVALID, apperrors.Code(err))
	assert.Empty(t, st.notifications)
}

func TestMarkNotificationsRead(t *testing.T) {
	st := newStore()
	svc := NewNotificationService(fakeNotificationRepo{st}, nil, nil)
	ctx := context.Background()
	recipient := uuid.New()

	var first *models.Notification
	for i := 0; i < 3; i++ {
		n := &models.Notification{RecipientID: recipient, RecipientType: models.RecipientCustomer, Type: models.NotificationPayment}
		require.NoError(t, svc.Notify(ctx, n))
		if first == nil {
			first = n
		}
	}

	require.NoError(t, svc.MarkAsRead(ctx, first.ID))
	assert.Equal(t, apperrors.ENOTFOUND, apperrors.Code(svc.MarkAsRead(ctx, first.ID)))

	unread, err := svc.ListNotifications(ctx, recipient, true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err := svc.MarkAllAsRead(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err = svc.ListNotifications(ctx, recipient, true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := svc.ListNotifications(ctx, recipient, false, 1000)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNotificationOnStatusChange(t *testing.T) {
	st := newStore()
	svc := NewNotificationService(fakeNotificationRepo{st}, nil, nil)
	customer := uuid.New()

	var handler realtime.StatusHandler = svc
	require.NoError(t, handler.OnStatusChange(context.Background(), realtime.StatusChange{
		OrderID:    uuid.New(),
		CustomerID: customer,
		OldStatus:  models.OrderPreparing,
		NewStatus:  models.OrderReadyForPickup,
	}))

	require.Len(t, st.notifications, 1)
	n := st.notifications[0]
	assert.Equal(t, customer, n.RecipientID)
	assert.Equal(t, models.NotificationOrderStatus, n.Type)
	assert.Equal(t, models.OrderReadyForPickup.Message(), n.Message)
	assert.Contains(t, string(n.Data), `"new_status":"ready_for_pickup"`)
}
