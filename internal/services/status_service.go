package services

import (
	"context"
	"fmt"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StatusUpdate is a manual order status change.
type StatusUpdate struct {
	OrderID       uuid.UUID
	Status        models.OrderStatus
	ChangedBy     *uuid.UUID
	ChangedByType string
	Notes         string
	Metadata      map[string]interface{}
}

type StatusService interface {
	UpdateStatus(ctx context.Context, update StatusUpdate) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, changedBy *uuid.UUID, changedByType, reason string) (*models.Order, error)
	GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

type statusService struct {
	trm         Transactor
	orders      repository.OrderRepository
	assignments repository.AssignmentRepository
	history     repository.HistoryRepository
	status      *statusWriter
}

func NewStatusService(
	trm Transactor,
	orders repository.OrderRepository,
	assignments repository.AssignmentRepository,
	history repository.HistoryRepository,
) StatusService {
	return &statusService{
		trm:         trm,
		orders:      orders,
		assignments: assignments,
		history:     history,
		status:      &statusWriter{orders: orders, history: history, now: time.Now},
	}
}

// workflowStatuses are entered only by the dispatcher and assignment
// responses, never by a manual update.
var workflowStatuses = map[models.OrderStatus]bool{
	models.OrderAwaitingRestaurant:    true,
	models.OrderRestaurantAccepted:    true,
	models.OrderNoRestaurantAccepted:  true,
	models.OrderNoRestaurantAvailable: true,
}

func (s *statusService) UpdateStatus(ctx context.Context, update StatusUpdate) (*models.Order, error) {
	const op = "StatusService.UpdateStatus"

	if !update.Status.IsValid() {
		return nil, apperrors.Invalid(op, fmt.Sprintf("unknown order status %q", update.Status))
	}
	if workflowStatuses[update.Status] {
		return nil, apperrors.Invalid(op, fmt.Sprintf("status %s is managed by restaurant assignment", update.Status))
	}
	if update.Status == models.OrderCancelled {
		return s.CancelOrder(ctx, update.OrderID, update.ChangedBy, update.ChangedByType, update.Notes)
	}

	var order *models.Order
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.GetByID(ctx, update.OrderID)
		if err != nil {
			return err
		}
		meta := changeMeta{
			source:   models.NormalizeChangeSource(update.ChangedByType),
			by:       update.ChangedBy,
			notes:    update.Notes,
			metadata: update.Metadata,
		}
		return s.status.apply(ctx, order, update.Status, meta, nil)
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().
		Str("order_id", order.ID.String()).
		Str("status", string(order.Status)).
		Msg("order status updated")
	return order, nil
}

func (s *statusService) CancelOrder(ctx context.Context, orderID uuid.UUID, changedBy *uuid.UUID, changedByType, reason string) (*models.Order, error) {
	const op = "StatusService.CancelOrder"

	var order *models.Order
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanCancel() {
			return apperrors.Invalid(op, fmt.Sprintf("order in status %s can no longer be cancelled", order.Status))
		}

		meta := changeMeta{
			source: models.NormalizeChangeSource(changedByType),
			by:     changedBy,
			notes:  reason,
		}
		if err := s.status.apply(ctx, order, models.OrderCancelled, meta, nil); err != nil {
			return err
		}

		cancelled, err := s.assignments.CancelPending(ctx, orderID, nil)
		if err != nil {
			return err
		}
		return s.history.RecordAssignments(ctx, assignmentEntries(cancelled, models.AssignmentCancelled, "order cancelled"))
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().Str("order_id", orderID.String()).Str("reason", reason).Msg("order cancelled")
	return order, nil
}

func (s *statusService) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	const op = "StatusService.GetStatusHistory"

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, apperrors.OpError(op, err)
	}
	entries, err := s.history.GetStatusHistory(ctx, orderID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return entries, nil
}
