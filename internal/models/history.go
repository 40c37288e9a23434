package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatusHistory is the append-only order event log.
type OrderStatusHistory struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID      `json:"order_id" gorm:"type:uuid;index;not null"`
	FromStatus    *OrderStatus   `json:"from_status" gorm:"type:varchar(32)"`
	ToStatus      OrderStatus    `json:"to_status" gorm:"type:varchar(32);not null"`
	ChangedBy     *uuid.UUID     `json:"changed_by" gorm:"type:uuid"`
	ChangedByType ChangeSource   `json:"changed_by_type" gorm:"type:varchar(16);not null;default:'system'"`
	Notes         string         `json:"notes" gorm:"type:text"`
	Metadata      datatypes.JSON `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

type AssignmentHistory struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	AssignmentID uuid.UUID        `json:"assignment_id" gorm:"type:uuid;index;not null"`
	OrderID      uuid.UUID        `json:"order_id" gorm:"type:uuid;index;not null"`
	RestaurantID uuid.UUID        `json:"restaurant_id" gorm:"type:uuid;not null"`
	Action       AssignmentStatus `json:"action" gorm:"type:varchar(16);not null"`
	Notes        string           `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (AssignmentHistory) TableName() string {
	return "assignment_history"
}

func (h *AssignmentHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
