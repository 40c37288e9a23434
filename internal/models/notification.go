package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Notification struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	RecipientID   uuid.UUID        `json:"recipient_id" gorm:"type:uuid;index:idx_notifications_recipient;not null"`
	RecipientType RecipientType    `json:"recipient_type" gorm:"type:varchar(16);not null"`
	OrderID       *uuid.UUID       `json:"order_id" gorm:"type:uuid;index"`
	Type          NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	Title         string           `json:"title" gorm:"not null"`
	Message       string           `json:"message" gorm:"type:text;not null"`
	Data          datatypes.JSON   `json:"data"`
	IsRead        bool             `json:"is_read" gorm:"index:idx_notifications_recipient;not null;default:false"`
	ReadAt        *time.Time       `json:"read_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

type RecipientType string

const (
	RecipientCustomer   RecipientType = "customer"
	RecipientRestaurant RecipientType = "restaurant"
	RecipientDriver     RecipientType = "driver"
)

type NotificationType string

const (
	NotificationOrderStatus     NotificationType = "order_status"
	NotificationNewAssignment   NotificationType = "new_assignment"
	NotificationLocationUpdate  NotificationType = "location_update"
	NotificationOrderPickedUp   NotificationType = "order_picked_up"
	NotificationDeliveryStarted NotificationType = "delivery_started"
	NotificationDriverNearby    NotificationType = "driver_nearby"
	NotificationPayment         NotificationType = "payment"
)
