package repository

import (
	"context"
	"order_dispatch/internal/models"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PreparationRepository interface {
	CreateBatch(ctx context.Context, stages []models.PreparationStage) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PreparationStage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.StageStatus, at time.Time) error
}

type preparationRepository struct {
	base
}

func NewPreparationRepository(db *gorm.DB, getter *trmgorm.CtxGetter) PreparationRepository {
	return &preparationRepository{base: newBase(db, getter)}
}

func (r *preparationRepository) CreateBatch(ctx context.Context, stages []models.PreparationStage) error {
	if len(stages) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&stages).Error
}

func (r *preparationRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PreparationStage, error) {
	var stages []models.PreparationStage
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("stage_order").Find(&stages).Error
	return stages, err
}

func (r *preparationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StageStatus, at time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case models.StageInProgress:
		updates["started_at"] = at
	case models.StageCompleted:
		updates["completed_at"] = at
	}
	return r.conn(ctx).Model(&models.PreparationStage{}).Where("id = ?", id).Updates(updates).Error
}
