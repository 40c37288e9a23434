package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID                   uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	OrderNumber          string          `json:"order_number" gorm:"uniqueIndex;not null"`
	CustomerID           uuid.UUID       `json:"customer_id" gorm:"type:uuid;index;not null"`
	CustomerName         string          `json:"customer_name" gorm:"not null"`
	CustomerEmail        string          `json:"customer_email"`
	CustomerPhone        string          `json:"customer_phone"`
	DeliveryAddress      string          `json:"delivery_address" gorm:"type:text;not null"`
	DeliveryLatitude     *float64        `json:"delivery_latitude"`
	DeliveryLongitude    *float64        `json:"delivery_longitude"`
	DeliveryInstructions string          `json:"delivery_instructions" gorm:"type:text"`
	PaymentMethod        string          `json:"payment_method" gorm:"not null"`
	PaymentStatus        string          `json:"payment_status" gorm:"default:'pending'"`
	Subtotal             decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	DeliveryFee          decimal.Decimal `json:"delivery_fee" gorm:"type:numeric(12,2);not null"`
	TotalAmount          decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Status               OrderStatus     `json:"status" gorm:"type:varchar(32);index;not null;default:'pending'"`
	RestaurantID         *uuid.UUID      `json:"restaurant_id" gorm:"type:uuid;index"`
	AssignmentSource     string          `json:"assignment_source" gorm:"default:'auto'"`
	AcceptedAt           *time.Time      `json:"accepted_at"`
	PreparationStartedAt *time.Time      `json:"preparation_started_at"`
	ReadyAt              *time.Time      `json:"ready_at"`
	PickedUpAt           *time.Time      `json:"picked_up_at"`
	DeliveredAt          *time.Time      `json:"delivered_at"`
	CancelledAt          *time.Time      `json:"cancelled_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// HasDeliveryLocation reports whether both delivery coordinates are set.
func (o *Order) HasDeliveryLocation() bool {
	return o.DeliveryLatitude != nil && o.DeliveryLongitude != nil
}
