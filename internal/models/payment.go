package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionRefund  TransactionType = "refund"
)

func (t TransactionType) IsValid() bool {
	return t == TransactionPayment || t == TransactionRefund
}

type PaymentTransaction struct {
	ID                    uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID               uuid.UUID       `json:"order_id" gorm:"type:uuid;index;not null"`
	CustomerID            uuid.UUID       `json:"customer_id" gorm:"type:uuid;index;not null"`
	TransactionType       TransactionType `json:"transaction_type" gorm:"type:varchar(16);not null"`
	Amount                decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	PaymentMethod         string          `json:"payment_method" gorm:"not null"`
	ExternalTransactionID string          `json:"external_transaction_id"`
	Status                string          `json:"status" gorm:"not null;default:'pending'"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (t *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Payment transaction statuses.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
)

type PaymentConfirmation struct {
	ID                 uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID            uuid.UUID  `json:"order_id" gorm:"type:uuid;index;not null"`
	TransactionID      uuid.UUID  `json:"transaction_id" gorm:"type:uuid;index;not null"`
	ConfirmerType      string     `json:"confirmer_type" gorm:"not null;default:'customer'"`
	Status             string     `json:"status" gorm:"not null;default:'pending'"`
	ConfirmedBy        *uuid.UUID `json:"confirmed_by" gorm:"type:uuid"`
	ConfirmationMethod string     `json:"confirmation_method"`
	ConfirmedAt        *time.Time `json:"confirmed_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (c *PaymentConfirmation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Confirmation statuses.
const (
	ConfirmationPending   = "pending"
	ConfirmationConfirmed = "confirmed"
)

type TipDistribution struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID       `json:"order_id" gorm:"type:uuid;index;not null"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	DriverPercentage decimal.Decimal `json:"driver_percentage" gorm:"type:numeric(5,2);not null"`
	DriverAmount     decimal.Decimal `json:"driver_amount" gorm:"type:numeric(12,2);not null"`
	RestaurantAmount decimal.Decimal `json:"restaurant_amount" gorm:"type:numeric(12,2);not null"`
	Status           string          `json:"status" gorm:"not null;default:'distributed'"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (t *TipDistribution) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// PaymentCoordination is the per-order payment summary row.
type PaymentCoordination struct {
	OrderID       uuid.UUID       `json:"order_id" gorm:"type:uuid;primaryKey"`
	PaymentStatus string          `json:"payment_status" gorm:"not null;default:'pending'"`
	TotalPaid     decimal.Decimal `json:"total_paid" gorm:"type:numeric(12,2);not null;default:0"`
	TotalRefunded decimal.Decimal `json:"total_refunded" gorm:"type:numeric(12,2);not null;default:0"`
	TipAmount     decimal.Decimal `json:"tip_amount" gorm:"type:numeric(12,2);not null;default:0"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Coordination statuses.
const (
	CoordinationPending              = "pending"
	CoordinationAwaitingConfirmation = "awaiting_confirmation"
	CoordinationConfirmed            = "confirmed"
	CoordinationRefunded             = "refunded"
)
