package services

import (
	"context"
	"fmt"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/metrics"
	"order_dispatch/internal/models"
	"order_dispatch/internal/repository"
	"order_dispatch/pkg/geo"
	"order_dispatch/pkg/webhook"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	dispatchKeyTTL  = 5 * time.Minute
	webhookDeadline = time.Minute

	eventOrderAssigned = "order.assigned"
)

type DispatchConfig struct {
	RadiusKm      float64
	MaxCandidates int
	MaxAttempts   int
	AssignmentTTL time.Duration
}

type DispatchResult struct {
	OrderID     uuid.UUID                     `json:"order_id"`
	Status      models.OrderStatus            `json:"status"`
	Attempt     int                           `json:"attempt"`
	Assignments []models.RestaurantAssignment `json:"assignments"`
}

type DispatchService interface {
	// Dispatch offers the order to the nearest untried restaurants.
	Dispatch(ctx context.Context, orderID uuid.UUID) (*DispatchResult, error)
	// Wait blocks until in-flight webhook deliveries finish.
	Wait()
}

type dispatchService struct {
	cfg           DispatchConfig
	trm           Transactor
	orders        repository.OrderRepository
	restaurants   repository.RestaurantRepository
	assignments   repository.AssignmentRepository
	history       repository.HistoryRepository
	keys          KeyStore
	notifications NotificationService
	webhooks      WebhookSender
	status        *statusWriter
	now           func() time.Time
	wg            sync.WaitGroup
}

func NewDispatchService(
	cfg DispatchConfig,
	trm Transactor,
	orders repository.OrderRepository,
	restaurants repository.RestaurantRepository,
	assignments repository.AssignmentRepository,
	history repository.HistoryRepository,
	keys KeyStore,
	notifications NotificationService,
	webhooks WebhookSender,
) DispatchService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AssignmentTTL <= 0 {
		cfg.AssignmentTTL = 15 * time.Minute
	}
	return &dispatchService{
		cfg:           cfg,
		trm:           trm,
		orders:        orders,
		restaurants:   restaurants,
		assignments:   assignments,
		history:       history,
		keys:          keys,
		notifications: notifications,
		webhooks:      webhooks,
		status:        &statusWriter{orders: orders, history: history, now: time.Now},
		now:           time.Now,
	}
}

func dispatchKey(orderID uuid.UUID, attempt int) string {
	return fmt.Sprintf("%s_assign_%d", orderID, attempt)
}

func isDispatchable(status models.OrderStatus) bool {
	for _, s := range models.DispatchableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *dispatchService) Dispatch(ctx context.Context, orderID uuid.UUID) (*DispatchResult, error) {
	const op = "DispatchService.Dispatch"

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	if !isDispatchable(order.Status) {
		return nil, apperrors.Conflict(op, fmt.Sprintf("order in status %s cannot be dispatched", order.Status))
	}

	result := &DispatchResult{OrderID: order.ID, Status: order.Status}

	if !order.HasDeliveryLocation() {
		metrics.DispatchOutcomes.WithLabelValues("no_location").Inc()
		if err := s.markUnavailable(ctx, order, "order has no delivery coordinates"); err != nil {
			return nil, apperrors.OpError(op, err)
		}
		result.Status = order.Status
		return result, nil
	}

	maxAttempt, err := s.assignments.MaxAttempt(ctx, orderID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	result.Attempt = maxAttempt + 1
	if result.Attempt > s.cfg.MaxAttempts {
		metrics.DispatchOutcomes.WithLabelValues("exhausted").Inc()
		if err := s.markUnavailable(ctx, order, "dispatch attempts exhausted"); err != nil {
			return nil, apperrors.OpError(op, err)
		}
		return nil, apperrors.Conflict(op, fmt.Sprintf("dispatch attempts exhausted after %d tries", s.cfg.MaxAttempts))
	}

	key := dispatchKey(orderID, result.Attempt)
	acquired, err := s.keys.AcquireKey(ctx, key, s.now().UTC().Format(time.RFC3339), dispatchKeyTTL)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	if !acquired {
		metrics.DispatchOutcomes.WithLabelValues("duplicate").Inc()
		return nil, apperrors.Conflict(op, "dispatch already in progress for this order")
	}

	assignments, candidates, err := s.assign(ctx, order, result.Attempt)
	if err != nil || len(assignments) == 0 {
		// nothing was offered under this attempt number
		if relErr := s.keys.ReleaseKey(ctx, key); relErr != nil {
			log.Ctx(ctx).Warn().Err(relErr).Str("key", key).Msg("failed to release dispatch key")
		}
	}
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	result.Status = order.Status
	result.Assignments = assignments

	if len(assignments) == 0 {
		metrics.DispatchOutcomes.WithLabelValues("no_candidates").Inc()
		return result, nil
	}
	metrics.DispatchOutcomes.WithLabelValues("assigned").Inc()
	metrics.AssignmentsCreated.Add(float64(len(assignments)))

	s.announce(ctx, order, assignments, candidates)

	log.Ctx(ctx).Info().
		Str("order_id", orderID.String()).
		Int("attempt", result.Attempt).
		Int("restaurants", len(assignments)).
		Msg("order dispatched")
	return result, nil
}

// assign picks candidates and, when there are any, creates the pending
// assignments and moves the order to awaiting_restaurant in one transaction.
func (s *dispatchService) assign(ctx context.Context, order *models.Order, attempt int) ([]models.RestaurantAssignment, map[uuid.UUID]models.RestaurantCandidate, error) {
	tried, err := s.assignments.TriedRestaurantIDs(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	center := geo.Point{Latitude: *order.DeliveryLatitude, Longitude: *order.DeliveryLongitude}
	found, err := s.restaurants.FindNearby(ctx, center, s.cfg.RadiusKm, tried, s.cfg.MaxCandidates)
	if err != nil {
		return nil, nil, err
	}
	if len(found) == 0 {
		return nil, nil, s.markUnavailable(ctx, order, "no restaurant available near the delivery address")
	}

	now := s.now()
	candidates := make(map[uuid.UUID]models.RestaurantCandidate, len(found))
	assignments := make([]models.RestaurantAssignment, 0, len(found))
	for _, c := range found {
		candidates[c.ID] = c
		assignments = append(assignments, models.RestaurantAssignment{
			ID:           uuid.New(),
			OrderID:      order.ID,
			RestaurantID: c.ID,
			Status:       models.AssignmentPending,
			Attempt:      attempt,
			DistanceKm:   c.DistanceKm,
			ExpiresAt:    now.Add(s.cfg.AssignmentTTL),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		meta := changeMeta{
			source:   models.ChangedBySystem,
			notes:    fmt.Sprintf("offered to %d restaurant(s)", len(assignments)),
			metadata: map[string]interface{}{"attempt": attempt},
		}
		if err := s.status.apply(ctx, order, models.OrderAwaitingRestaurant, meta, nil); err != nil {
			return err
		}
		if err := s.assignments.CreateBatch(ctx, assignments); err != nil {
			return err
		}
		return s.history.RecordAssignments(ctx, assignmentEntries(assignments, models.AssignmentAssigned, ""))
	})
	if err != nil {
		return nil, nil, err
	}
	return assignments, candidates, nil
}

// markUnavailable parks the order in no_restaurant_available unless it is
// already there.
func (s *dispatchService) markUnavailable(ctx context.Context, order *models.Order, reason string) error {
	if order.Status == models.OrderNoRestaurantAvailable {
		return nil
	}
	return s.trm.Do(ctx, func(ctx context.Context) error {
		return s.status.apply(ctx, order, models.OrderNoRestaurantAvailable, changeMeta{
			source: models.ChangedBySystem,
			notes:  reason,
		}, nil)
	})
}

// announce notifies every offered restaurant. Webhooks run in the
// background with their own deadline.
func (s *dispatchService) announce(ctx context.Context, order *models.Order, assignments []models.RestaurantAssignment, candidates map[uuid.UUID]models.RestaurantCandidate) {
	for _, a := range assignments {
		orderID := order.ID
		err := s.notifications.Notify(ctx, &models.Notification{
			RecipientID:   a.RestaurantID,
			RecipientType: models.RecipientRestaurant,
			OrderID:       &orderID,
			Type:          models.NotificationNewAssignment,
			Title:         "New order available",
			Message:       fmt.Sprintf("Order %s is waiting for your response", order.OrderNumber),
			Data: jsonData(map[string]interface{}{
				"assignment_id": a.ID,
				"distance_km":   a.DistanceKm,
				"expires_at":    a.ExpiresAt,
			}),
		})
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("restaurant_id", a.RestaurantID.String()).Msg("failed to notify restaurant")
		}

		candidate := candidates[a.RestaurantID]
		if s.webhooks == nil || candidate.WebhookURL == "" {
			continue
		}
		event := &webhook.Event{
			Type:           eventOrderAssigned,
			IdempotencyKey: dispatchKey(order.ID, a.Attempt) + "_" + a.RestaurantID.String(),
			OccurredAt:     s.now().UTC(),
			Data: webhook.AssignmentPayload{
				OrderID:         order.ID.String(),
				OrderNumber:     order.OrderNumber,
				AssignmentID:    a.ID.String(),
				RestaurantID:    a.RestaurantID.String(),
				DeliveryAddress: order.DeliveryAddress,
				Latitude:        *order.DeliveryLatitude,
				Longitude:       *order.DeliveryLongitude,
				DistanceKm:      a.DistanceKm,
				TotalAmount:     order.TotalAmount.StringFixed(2),
				ItemCount:       len(order.Items),
				ExpiresAt:       a.ExpiresAt,
			},
		}
		s.wg.Add(1)
		go s.deliver(context.WithoutCancel(ctx), candidate.WebhookURL, event)
	}
}

func (s *dispatchService) deliver(ctx context.Context, url string, event *webhook.Event) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, webhookDeadline)
	defer cancel()

	start := time.Now()
	err := s.webhooks.Send(ctx, url, event)
	metrics.WebhookDuration.WithLabelValues(metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("idempotency_key", event.IdempotencyKey).
			Msg("restaurant webhook delivery failed")
	}
}

func (s *dispatchService) Wait() {
	s.wg.Wait()
}
