package services

import (
	"context"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/metrics"
	"order_dispatch/internal/models"
	"order_dispatch/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type AssignmentService interface {
	AcceptOrder(ctx context.Context, orderID, restaurantID uuid.UUID, notes string) (*models.Order, error)
	RejectOrder(ctx context.Context, orderID, restaurantID uuid.UUID, notes string) (*models.Order, error)
	ListPendingAssignments(ctx context.Context, restaurantID uuid.UUID) ([]models.RestaurantAssignment, error)
	GetOrderAssignments(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error)
}

type assignmentService struct {
	trm         Transactor
	orders      repository.OrderRepository
	assignments repository.AssignmentRepository
	history     repository.HistoryRepository
	preparation repository.PreparationRepository
	status      *statusWriter
	now         func() time.Time
}

func NewAssignmentService(
	trm Transactor,
	orders repository.OrderRepository,
	assignments repository.AssignmentRepository,
	history repository.HistoryRepository,
	preparation repository.PreparationRepository,
) AssignmentService {
	return &assignmentService{
		trm:         trm,
		orders:      orders,
		assignments: assignments,
		history:     history,
		preparation: preparation,
		status:      &statusWriter{orders: orders, history: history, now: time.Now},
		now:         time.Now,
	}
}

// AcceptOrder gives the order to restaurantID. The order row is updated
// first so that concurrent accepts serialize on it; the loser sees a
// status other than awaiting_restaurant and gets a conflict.
func (s *assignmentService) AcceptOrder(ctx context.Context, orderID, restaurantID uuid.UUID, notes string) (*models.Order, error) {
	const op = "AssignmentService.AcceptOrder"

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderAwaitingRestaurant {
			return apperrors.Conflict(op, "order is no longer awaiting a restaurant")
		}

		meta := changeMeta{source: models.ChangedByRestaurant, by: &restaurantID, notes: notes}
		if err := s.status.apply(ctx, order, models.OrderRestaurantAccepted, meta, map[string]interface{}{
			"restaurant_id": restaurantID,
		}); err != nil {
			return err
		}

		accepted, err := s.assignments.Respond(ctx, orderID, restaurantID, models.AssignmentAccepted, notes, s.now())
		if err != nil {
			return err
		}
		if accepted == nil {
			// rolls back the order update above
			return s.unanswerable(ctx, op, orderID, restaurantID)
		}

		cancelled, err := s.assignments.CancelPending(ctx, orderID, &restaurantID)
		if err != nil {
			return err
		}

		entries := assignmentEntries([]models.RestaurantAssignment{*accepted}, models.AssignmentAccepted, notes)
		entries = append(entries, assignmentEntries(cancelled, models.AssignmentCancelled, "accepted by another restaurant")...)
		return s.history.RecordAssignments(ctx, entries)
	})
	metrics.AssignmentResponses.WithLabelValues("accept", metrics.Result(err)).Inc()
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	stages := models.DefaultPreparationStages(orderID, restaurantID)
	if err := s.preparation.CreateBatch(ctx, stages); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("order_id", orderID.String()).Msg("failed to seed preparation stages")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	log.Ctx(ctx).Info().
		Str("order_id", orderID.String()).
		Str("restaurant_id", restaurantID.String()).
		Msg("order accepted")
	return order, nil
}

// RejectOrder declines the restaurant's assignment. When it was the last
// open one the order becomes no_restaurant_accepted.
func (s *assignmentService) RejectOrder(ctx context.Context, orderID, restaurantID uuid.UUID, notes string) (*models.Order, error) {
	const op = "AssignmentService.RejectOrder"

	var order *models.Order
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}

		rejected, err := s.assignments.Respond(ctx, orderID, restaurantID, models.AssignmentRejected, notes, s.now())
		if err != nil {
			return err
		}
		if rejected == nil {
			return s.unanswerable(ctx, op, orderID, restaurantID)
		}
		entries := assignmentEntries([]models.RestaurantAssignment{*rejected}, models.AssignmentRejected, notes)
		if err := s.history.RecordAssignments(ctx, entries); err != nil {
			return err
		}

		open, err := s.assignments.CountByStatus(ctx, orderID, models.AssignmentPending, models.AssignmentAccepted)
		if err != nil {
			return err
		}
		if open > 0 || order.Status != models.OrderAwaitingRestaurant {
			return nil
		}

		meta := changeMeta{source: models.ChangedByRestaurant, by: &restaurantID, notes: "all assigned restaurants declined"}
		return s.status.apply(ctx, order, models.OrderNoRestaurantAccepted, meta, nil)
	})
	metrics.AssignmentResponses.WithLabelValues("reject", metrics.Result(err)).Inc()
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().
		Str("order_id", orderID.String()).
		Str("restaurant_id", restaurantID.String()).
		Str("order_status", string(order.Status)).
		Msg("order rejected")
	return order, nil
}

// unanswerable explains why the restaurant has no pending assignment to
// respond to.
func (s *assignmentService) unanswerable(ctx context.Context, op string, orderID, restaurantID uuid.UUID) error {
	assignments, err := s.assignments.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range assignments {
		a := &assignments[i]
		if a.RestaurantID != restaurantID {
			continue
		}
		if a.Status == models.AssignmentExpired || (a.Status == models.AssignmentPending && a.IsExpired(s.now())) {
			return apperrors.Conflict(op, "assignment has expired")
		}
	}
	return apperrors.NotFound(op, "no pending assignment for this restaurant")
}

func (s *assignmentService) ListPendingAssignments(ctx context.Context, restaurantID uuid.UUID) ([]models.RestaurantAssignment, error) {
	const op = "AssignmentService.ListPendingAssignments"

	assignments, err := s.assignments.GetPendingByRestaurant(ctx, restaurantID, s.now())
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return assignments, nil
}

func (s *assignmentService) GetOrderAssignments(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error) {
	const op = "AssignmentService.GetOrderAssignments"

	assignments, err := s.assignments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return assignments, nil
}
