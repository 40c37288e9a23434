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

const expiryBatchSize = 200

// ExpiryService closes restaurant assignments nobody answered in time.
type ExpiryService interface {
	ProcessExpiredAssignments(ctx context.Context) (int, error)
	Run(ctx context.Context, interval time.Duration)
}

type expiryService struct {
	trm         Transactor
	orders      repository.OrderRepository
	assignments repository.AssignmentRepository
	history     repository.HistoryRepository
	status      *statusWriter
	now         func() time.Time
}

func NewExpiryService(
	trm Transactor,
	orders repository.OrderRepository,
	assignments repository.AssignmentRepository,
	history repository.HistoryRepository,
) ExpiryService {
	return &expiryService{
		trm:         trm,
		orders:      orders,
		assignments: assignments,
		history:     history,
		status:      &statusWriter{orders: orders, history: history, now: time.Now},
		now:         time.Now,
	}
}

// ProcessExpiredAssignments expires the overdue assignments of one batch
// of orders and returns how many it expired.
func (s *expiryService) ProcessExpiredAssignments(ctx context.Context) (int, error) {
	const op = "ExpiryService.ProcessExpiredAssignments"

	orderIDs, err := s.assignments.DueOrderIDs(ctx, s.now(), expiryBatchSize)
	if err != nil {
		return 0, apperrors.OpError(op, err)
	}

	total := 0
	for _, orderID := range orderIDs {
		n, err := s.expireOrder(ctx, orderID)
		if err != nil {
			return total, apperrors.OpError(op, err)
		}
		total += n
	}

	if total > 0 {
		metrics.AssignmentsExpired.Add(float64(total))
		log.Ctx(ctx).Info().Int("count", total).Int("orders", len(orderIDs)).Msg("expired restaurant assignments")
	}
	return total, nil
}

// expireOrder locks the order before its assignments, the same order
// accept and reject take them in. An order locked elsewhere is left for
// the next sweep.
func (s *expiryService) expireOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var expired []models.RestaurantAssignment
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.TryLockByID(ctx, orderID)
		if err != nil || order == nil {
			return err
		}
		expired, err = s.assignments.ExpirePending(ctx, orderID, s.now())
		if err != nil || len(expired) == 0 {
			return err
		}
		if err := s.history.RecordAssignments(ctx, assignmentEntries(expired, models.AssignmentExpired, "no response before deadline")); err != nil {
			return err
		}
		return s.closeOrder(ctx, order)
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}

// closeOrder moves an awaiting order to no_restaurant_accepted once no
// assignment can still answer it.
func (s *expiryService) closeOrder(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderAwaitingRestaurant {
		return nil
	}
	open, err := s.assignments.CountByStatus(ctx, order.ID, models.AssignmentPending, models.AssignmentAccepted)
	if err != nil || open > 0 {
		return err
	}
	return s.status.apply(ctx, order, models.OrderNoRestaurantAccepted, changeMeta{
		source: models.ChangedBySystem,
		notes:  "restaurant assignments expired",
	}, nil)
}

// Run sweeps every interval until ctx is cancelled. A full batch is
// followed immediately by another sweep.
func (s *expiryService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.Ctx(ctx)
	logger.Info().Dur("interval", interval).Msg("assignment expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("assignment expiry sweeper stopped")
			return
		case <-ticker.C:
			for {
				n, err := s.ProcessExpiredAssignments(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("assignment expiry sweep failed")
					break
				}
				if n < expiryBatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}
