package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeliveryAssignment struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID      `json:"order_id" gorm:"type:uuid;index;not null"`
	DriverID         uuid.UUID      `json:"driver_id" gorm:"type:uuid;index;not null"`
	Status           DeliveryStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'assigned'"`
	CurrentLatitude  *float64       `json:"current_latitude"`
	CurrentLongitude *float64       `json:"current_longitude"`
	LastLocationAt   *time.Time     `json:"last_location_at"`
	NearbyAlertSent  bool           `json:"nearby_alert_sent" gorm:"not null;default:false"`
	PickedUpAt       *time.Time     `json:"picked_up_at"`
	DeliveredAt      *time.Time     `json:"delivered_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (d *DeliveryAssignment) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRejected  DeliveryStatus = "rejected"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// ActiveDeliveryStatuses are the statuses that hold an order for a driver.
var ActiveDeliveryStatuses = []DeliveryStatus{DeliveryAssigned, DeliveryPickedUp}

// DeliveryLocation is one point of the append-only driver location log.
type DeliveryLocation struct {
	ID                   uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DeliveryAssignmentID uuid.UUID `json:"delivery_assignment_id" gorm:"type:uuid;index:idx_delivery_locations_assignment_time;not null"`
	Latitude             float64   `json:"latitude" gorm:"not null"`
	Longitude            float64   `json:"longitude" gorm:"not null"`
	Accuracy             *float64  `json:"accuracy"`
	Speed                *float64  `json:"speed"`
	Heading              *float64  `json:"heading"`
	RecordedAt           time.Time `json:"recorded_at" gorm:"index:idx_delivery_locations_assignment_time;not null"`
}

func (l *DeliveryLocation) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type DeliveryRejection struct {
	ID                   uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DeliveryAssignmentID uuid.UUID `json:"delivery_assignment_id" gorm:"type:uuid;index;not null"`
	OrderID              uuid.UUID `json:"order_id" gorm:"type:uuid;index;not null"`
	DriverID             uuid.UUID `json:"driver_id" gorm:"type:uuid;not null"`
	Reason               string    `json:"reason" gorm:"type:text"`
	CreatedAt            time.Time `json:"created_at"`
}

func (r *DeliveryRejection) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PickupCandidate is a ready order waiting for a driver, located at its restaurant.
type PickupCandidate struct {
	OrderID         uuid.UUID `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	DeliveryAddress string    `json:"delivery_address"`
	RestaurantID    uuid.UUID `json:"restaurant_id"`
	RestaurantName  string    `json:"restaurant_name"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	DistanceKm      float64   `json:"distance_km" gorm:"-"`
}
