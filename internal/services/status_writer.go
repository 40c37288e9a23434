package services

import (
	"context"
	"fmt"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/metrics"
	"order_dispatch/internal/models"
	"order_dispatch/internal/repository"
	"time"

	"github.com/google/uuid"
)

type changeMeta struct {
	source   models.ChangeSource
	by       *uuid.UUID
	notes    string
	metadata map[string]interface{}
}

// statusWriter applies one validated order transition and its history
// entry. Callers run it inside a transaction.
type statusWriter struct {
	orders  repository.OrderRepository
	history repository.HistoryRepository
	now     func() time.Time
}

func (w *statusWriter) apply(ctx context.Context, order *models.Order, to models.OrderStatus, meta changeMeta, extra map[string]interface{}) error {
	const op = "statusWriter.apply"

	from := order.Status
	if !from.CanTransitionTo(to) {
		return apperrors.Invalid(op, fmt.Sprintf("cannot change order status from %s to %s", from, to))
	}

	now := w.now()
	fields := map[string]interface{}{}
	for k, v := range extra {
		fields[k] = v
	}
	if col := to.TimestampColumn(); col != "" {
		fields[col] = now
	}

	ok, err := w.orders.TransitionStatus(ctx, order.ID, []models.OrderStatus{from}, to, fields)
	if err != nil {
		return apperrors.OpError(op, err)
	}
	if !ok {
		return apperrors.Conflict(op, "order status changed concurrently")
	}

	source := meta.source
	if source == "" {
		source = models.ChangedBySystem
	}
	entry := &models.OrderStatusHistory{
		OrderID:       order.ID,
		FromStatus:    &from,
		ToStatus:      to,
		ChangedBy:     meta.by,
		ChangedByType: source,
		Notes:         meta.notes,
		CreatedAt:     now,
	}
	if meta.metadata != nil {
		entry.Metadata = jsonData(meta.metadata)
	}
	if err := w.history.RecordStatus(ctx, entry); err != nil {
		return apperrors.OpError(op, err)
	}

	order.Status = to
	order.UpdatedAt = now
	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	return nil
}

func assignmentEntries(assignments []models.RestaurantAssignment, action models.AssignmentStatus, notes string) []models.AssignmentHistory {
	entries := make([]models.AssignmentHistory, 0, len(assignments))
	for _, a := range assignments {
		entries = append(entries, models.AssignmentHistory{
			AssignmentID: a.ID,
			OrderID:      a.OrderID,
			RestaurantID: a.RestaurantID,
			Action:       action,
			Notes:        notes,
		})
	}
	return entries
}
