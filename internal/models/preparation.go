package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PreparationStage struct {
	ID                       uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID                  uuid.UUID   `json:"order_id" gorm:"type:uuid;index;not null"`
	RestaurantID             uuid.UUID   `json:"restaurant_id" gorm:"type:uuid;index;not null"`
	StageName                string      `json:"stage_name" gorm:"not null"`
	StageOrder               int         `json:"stage_order" gorm:"not null"`
	Status                   StageStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	EstimatedDurationMinutes int         `json:"estimated_duration_minutes"`
	StartedAt                *time.Time  `json:"started_at"`
	CompletedAt              *time.Time  `json:"completed_at"`
	Notes                    string      `json:"notes" gorm:"type:text"`
	CreatedAt                time.Time   `json:"created_at"`
	UpdatedAt                time.Time   `json:"updated_at"`
}

func (s *PreparationStage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageSkipped    StageStatus = "skipped"
	StageCancelled  StageStatus = "cancelled"
)

// DefaultPreparationStages returns the stages seeded when a restaurant accepts an order.
func DefaultPreparationStages(orderID, restaurantID uuid.UUID) []PreparationStage {
	defaults := []struct {
		name    string
		minutes int
	}{
		{"order_received", 2},
		{"ingredients_prep", 8},
		{"cooking", 15},
		{"packaging", 3},
	}

	stages := make([]PreparationStage, 0, len(defaults))
	for i, d := range defaults {
		stages = append(stages, PreparationStage{
			OrderID:                  orderID,
			RestaurantID:             restaurantID,
			StageName:                d.name,
			StageOrder:               i + 1,
			Status:                   StagePending,
			EstimatedDurationMinutes: d.minutes,
		})
	}
	return stages
}
