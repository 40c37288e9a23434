package services

import (
	"context"
	"encoding/json"
	"order_dispatch/internal/redis"
	"order_dispatch/pkg/webhook"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Transactor runs fn inside a database transaction carried by ctx.
// *manager.Manager from go-transaction-manager satisfies it.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// KeyStore holds idempotency keys and throttles. *redis.Client satisfies it.
type KeyStore interface {
	AcquireKey(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	GetKey(ctx context.Context, key string) (string, error)
	SetKey(ctx context.Context, key, value string, ttl time.Duration) error
	ReleaseKey(ctx context.Context, key string) error
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

type OrderCache interface {
	SetRecentOrders(ctx context.Context, customerID uuid.UUID, orders interface{}, ttl time.Duration) error
	GetRecentOrders(ctx context.Context, customerID uuid.UUID, dest interface{}) error
	DeleteRecentOrders(ctx context.Context, customerID uuid.UUID) error
}

type LocationCache interface {
	SetDriverLocation(ctx context.Context, loc *redis.DriverLocation, ttl time.Duration) error
	GetDriverLocation(ctx context.Context, assignmentID uuid.UUID) (*redis.DriverLocation, error)
}

type WebhookSender interface {
	Send(ctx context.Context, url string, event *webhook.Event) error
}

// EventPublisher forwards notifications to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, v interface{}) error
}

// RealtimePublisher pushes events to websocket subscribers of an order.
type RealtimePublisher interface {
	Publish(ctx context.Context, orderID uuid.UUID, eventType string, v interface{}) error
}

func jsonData(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
