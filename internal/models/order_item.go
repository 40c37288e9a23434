package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderItem struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID       `json:"order_id" gorm:"type:uuid;index;not null"`
	MealID     *string         `json:"meal_id"`
	MenuItemID *string         `json:"menu_item_id"`
	Name       string          `json:"name" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	SourceType string          `json:"source_type" gorm:"default:'nutrition_generation'"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Default item source when the client does not send one.
const DefaultItemSource = "nutrition_generation"

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal returns price * quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
