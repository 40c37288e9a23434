package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

type DriverLocation struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

func (c *Client) getJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	return json.Unmarshal(val, dest)
}

// Driver location cache
func (c *Client) SetDriverLocation(ctx context.Context, loc *DriverLocation, ttl time.Duration) error {
	return c.setJSON(ctx, driverLocationKey(loc.AssignmentID), loc, ttl)
}

func (c *Client) GetDriverLocation(ctx context.Context, assignmentID uuid.UUID) (*DriverLocation, error) {
	var loc DriverLocation
	if err := c.getJSON(ctx, driverLocationKey(assignmentID), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// Recent orders cache
func (c *Client) SetRecentOrders(ctx context.Context, customerID uuid.UUID, orders interface{}, ttl time.Duration) error {
	return c.setJSON(ctx, recentOrdersKey(customerID), orders, ttl)
}

func (c *Client) GetRecentOrders(ctx context.Context, customerID uuid.UUID, dest interface{}) error {
	return c.getJSON(ctx, recentOrdersKey(customerID), dest)
}

func (c *Client) DeleteRecentOrders(ctx context.Context, customerID uuid.UUID) error {
	return c.rdb.Del(ctx, recentOrdersKey(customerID)).Err()
}

// Idempotency keys

// AcquireKey stores value under key if the key is free and reports whether
// it did.
func (c *Client) AcquireKey(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), value, ttl).Result()
}

func (c *Client) GetKey(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *Client) SetKey(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

func (c *Client) ReleaseKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// Allow reports whether an action under key may run, admitting one call per window.
func (c *Client) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "throttle:"+key, 1, window).Result()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func driverLocationKey(assignmentID uuid.UUID) string {
	return "driver_location:" + assignmentID.String()
}

func recentOrdersKey(customerID uuid.UUID) string {
	return "recent_orders:" + customerID.String()
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}
