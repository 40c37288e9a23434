package services

import (
	"context"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type PreparationService interface {
	GetStages(ctx context.Context, orderID uuid.UUID) ([]models.PreparationStage, error)
	// AdvancePreparation completes the running stage and starts the next.
	AdvancePreparation(ctx context.Context, orderID, restaurantID uuid.UUID) ([]models.PreparationStage, error)
}

type preparationService struct {
	trm         Transactor
	orders      repository.OrderRepository
	preparation repository.PreparationRepository
	status      *statusWriter
	now         func() time.Time
}

func NewPreparationService(
	trm Transactor,
	orders repository.OrderRepository,
	preparation repository.PreparationRepository,
	history repository.HistoryRepository,
) PreparationService {
	return &preparationService{
		trm:         trm,
		orders:      orders,
		preparation: preparation,
		status:      &statusWriter{orders: orders, history: history, now: time.Now},
		now:         time.Now,
	}
}

func (s *preparationService) GetStages(ctx context.Context, orderID uuid.UUID) ([]models.PreparationStage, error) {
	const op = "PreparationService.GetStages"

	stages, err := s.preparation.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return stages, nil
}

func (s *preparationService) AdvancePreparation(ctx context.Context, orderID, restaurantID uuid.UUID) ([]models.PreparationStage, error) {
	const op = "PreparationService.AdvancePreparation"

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.RestaurantID == nil || *order.RestaurantID != restaurantID {
			return apperrors.NotFound(op, "order is not assigned to this restaurant")
		}

		stages, err := s.preparation.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			return apperrors.Conflict(op, "order has no preparation stages")
		}

		now := s.now()
		current, next := -1, -1
		for i, st := range stages {
			if st.Status == models.StageInProgress {
				current = i
				break
			}
		}
		start := 0
		if current >= 0 {
			start = current + 1
		}
		for i := start; i < len(stages); i++ {
			if stages[i].Status == models.StagePending {
				next = i
				break
			}
		}
		if current < 0 && next < 0 {
			return apperrors.Conflict(op, "preparation is already complete")
		}

		meta := changeMeta{source: models.ChangedByRestaurant, by: &restaurantID}
		if current >= 0 {
			if err := s.preparation.UpdateStatus(ctx, stages[current].ID, models.StageCompleted, now); err != nil {
				return err
			}
		}
		if next >= 0 {
			if err := s.preparation.UpdateStatus(ctx, stages[next].ID, models.StageInProgress, now); err != nil {
				return err
			}
			if order.Status != models.OrderPreparing {
				meta.notes = "started " + stages[next].StageName
				return s.status.apply(ctx, order, models.OrderPreparing, meta, nil)
			}
			return nil
		}

		meta.notes = "completed " + stages[current].StageName
		return s.status.apply(ctx, order, models.OrderReadyForPickup, meta, nil)
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().Str("order_id", orderID.String()).Msg("preparation advanced")
	return s.GetStages(ctx, orderID)
}
