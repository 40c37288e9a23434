package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Header names sent with every delivery.
const (
	HeaderSignature      = "X-Webhook-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderEvent          = "X-Webhook-Event"
	HeaderTimestamp      = "X-Webhook-Timestamp"
)

const defaultMaxDelay = 30 * time.Second

type Client struct {
	Secret     string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	HTTPClient *http.Client
}

// Event is the envelope posted to a restaurant endpoint.
type Event struct {
	Type           string      `json:"type"`
	IdempotencyKey string      `json:"idempotency_key"`
	OccurredAt     time.Time   `json:"occurred_at"`
	Data           interface{} `json:"data"`
}

// AssignmentPayload is the data of an "order.assigned" event.
type AssignmentPayload struct {
	OrderID         string    `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	AssignmentID    string    `json:"assignment_id"`
	RestaurantID    string    `json:"restaurant_id"`
	DeliveryAddress string    `json:"delivery_address"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	DistanceKm      float64   `json:"distance_km"`
	TotalAmount     string    `json:"total_amount"`
	ItemCount       int       `json:"item_count"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func NewClient(secret string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		Secret:     secret,
		MaxRetries: maxRetries,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   defaultMaxDelay,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Sign returns the hex HMAC-SHA256 of timestamp + "." + body.
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Send posts the event to url, retrying transport errors, 429 and 5xx with
// exponential backoff. The same idempotency key is sent on every attempt.
func (c *Client) Send(ctx context.Context, url string, event *Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.post(ctx, url, event, body)
		if lastErr == nil {
			return nil
		}
		if statusErr, ok := lastErr.(*StatusError); ok && !statusErr.retryable() {
			return lastErr
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", c.MaxRetries+1, lastErr)
}

// backoff doubles BaseDelay per retry up to MaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	limit := c.MaxDelay
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	delay := c.BaseDelay
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

func (c *Client) post(ctx context.Context, url string, event *Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.Type)
	req.Header.Set(HeaderIdempotencyKey, event.IdempotencyKey)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, Sign(c.Secret, ts, body))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
