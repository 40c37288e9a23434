package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RestaurantAssignment struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID        `json:"order_id" gorm:"type:uuid;index;not null"`
	RestaurantID  uuid.UUID        `json:"restaurant_id" gorm:"type:uuid;index;not null"`
	Status        AssignmentStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'pending'"`
	Attempt       int              `json:"attempt" gorm:"not null;default:1"`
	DistanceKm    float64          `json:"distance_km"`
	ExpiresAt     time.Time        `json:"expires_at" gorm:"index;not null"`
	RespondedAt   *time.Time       `json:"responded_at"`
	ResponseNotes string           `json:"response_notes" gorm:"type:text"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (a *RestaurantAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether a pending assignment can no longer be answered.
func (a *RestaurantAssignment) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentRejected  AssignmentStatus = "rejected"
	AssignmentCancelled AssignmentStatus = "cancelled"
	AssignmentExpired   AssignmentStatus = "expired"
)

// AssignmentAssigned only appears in assignment history, as the action
// recorded when an assignment is offered.
const AssignmentAssigned AssignmentStatus = "assigned"

func (s AssignmentStatus) IsValid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentRejected, AssignmentCancelled, AssignmentExpired:
		return true
	}
	return false
}

func (s AssignmentStatus) String() string {
	return string(s)
}
