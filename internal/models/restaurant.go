package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Restaurant struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string         `json:"name" gorm:"not null"`
	Email      string         `json:"email" gorm:"uniqueIndex;not null"`
	Phone      string         `json:"phone"`
	Address    string         `json:"address" gorm:"type:text"`
	Latitude   float64        `json:"latitude" gorm:"not null;index:idx_restaurants_location"`
	Longitude  float64        `json:"longitude" gorm:"not null;index:idx_restaurants_location"`
	WebhookURL string         `json:"webhook_url"`
	APIKeyHash string         `json:"-" gorm:"not null"`
	IsActive   bool           `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

func (r *Restaurant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RestaurantCandidate is a restaurant with its distance to a delivery point.
type RestaurantCandidate struct {
	Restaurant
	DistanceKm float64 `json:"distance_km"`
}
