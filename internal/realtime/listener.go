package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"order_dispatch/internal/metrics"
	"order_dispatch/internal/models"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// StatusChannel is the NOTIFY channel fed by the orders status trigger.
const StatusChannel = "order_status_changes"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
	maxSeen      = 10000
)

// StatusChange is the payload emitted by the orders trigger.
type StatusChange struct {
	OrderID    uuid.UUID          `json:"order_id"`
	CustomerID uuid.UUID          `json:"customer_id"`
	OldStatus  models.OrderStatus `json:"old_status"`
	NewStatus  models.OrderStatus `json:"new_status"`
	ChangedAt  time.Time          `json:"changed_at"`
}

type StatusHandler interface {
	OnStatusChange(ctx context.Context, change StatusChange) error
}

type seenEvent struct {
	status    models.OrderStatus
	changedAt time.Time
}

// StatusListener turns change-feed notifications into handler calls. Each
// distinct change reaches every handler once; unchanged statuses and
// redelivered events are dropped.
type StatusListener struct {
	dsn      string
	handlers []StatusHandler
	mu       sync.Mutex
	seen     map[uuid.UUID]seenEvent
}

func NewStatusListener(dsn string, handlers ...StatusHandler) *StatusListener {
	return &StatusListener{
		dsn:      dsn,
		handlers: handlers,
		seen:     make(map[uuid.UUID]seenEvent),
	}
}

// Run listens on StatusChannel until ctx is cancelled.
func (l *StatusListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn().Err(err).Int("event", int(ev)).Msg("status listener connection event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(StatusChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", StatusChannel, err)
	}
	log.Info().Str("channel", StatusChannel).Msg("status listener started")

	return l.consume(ctx, listener.Notify, listener.Ping)
}

func (l *StatusListener) consume(ctx context.Context, notifications <-chan *pq.Notification, ping func() error) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			// nil after a reconnect
			if n == nil {
				continue
			}
			if _, err := l.Handle(ctx, n.Extra); err != nil {
				log.Error().Err(err).Str("payload", n.Extra).Msg("failed to handle status change")
			}
		case <-ticker.C:
			if err := ping(); err != nil {
				log.Warn().Err(err).Msg("status listener ping failed")
			}
		}
	}
}

// Handle decodes one payload and dispatches it. It reports whether the
// handlers were called.
func (l *StatusListener) Handle(ctx context.Context, payload string) (bool, error) {
	var change StatusChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		metrics.ListenerEvents.WithLabelValues("malformed").Inc()
		return false, fmt.Errorf("failed to decode status change: %w", err)
	}

	if change.OldStatus == change.NewStatus {
		metrics.ListenerEvents.WithLabelValues("unchanged").Inc()
		return false, nil
	}
	if !l.markSeen(change) {
		metrics.ListenerEvents.WithLabelValues("duplicate").Inc()
		return false, nil
	}

	var firstErr error
	for _, handler := range l.handlers {
		if err := handler.OnStatusChange(ctx, change); err != nil {
			log.Error().Err(err).
				Str("order_id", change.OrderID.String()).
				Str("status", string(change.NewStatus)).
				Msg("status handler failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.ListenerEvents.WithLabelValues(metrics.Result(firstErr)).Inc()
	return true, firstErr
}

func (l *StatusListener) markSeen(change StatusChange) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	event := seenEvent{status: change.NewStatus, changedAt: change.ChangedAt}
	if last, ok := l.seen[change.OrderID]; ok && last.status == event.status && last.changedAt.Equal(event.changedAt) {
		return false
	}
	if len(l.seen) >= maxSeen {
		l.seen = make(map[uuid.UUID]seenEvent)
	}
	l.seen[change.OrderID] = event
	return true
}
