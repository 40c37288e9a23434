package repository

import (
	"context"
	"errors"
	"order_dispatch/internal/models"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	GetTransactions(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error)
	CompleteTransaction(ctx context.Context, id uuid.UUID) error

	CreateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) error
	GetConfirmation(ctx context.Context, id uuid.UUID) (*models.PaymentConfirmation, error)
	GetConfirmations(ctx context.Context, orderID uuid.UUID) ([]models.PaymentConfirmation, error)
	// Confirm marks a pending confirmation confirmed and reports whether it
	// was still pending.
	Confirm(ctx context.Context, id, confirmedBy uuid.UUID, method string, at time.Time) (bool, error)
	CountPendingConfirmations(ctx context.Context, orderID uuid.UUID) (int64, error)

	CreateTipDistribution(ctx context.Context, tip *models.TipDistribution) error
	GetTipDistributions(ctx context.Context, orderID uuid.UUID) ([]models.TipDistribution, error)

	// GetCoordination returns the order's summary row or a fresh pending one.
	GetCoordination(ctx context.Context, orderID uuid.UUID) (*models.PaymentCoordination, error)
	SaveCoordination(ctx context.Context, coordination *models.PaymentCoordination) error
}

type paymentRepository struct {
	base
}

func NewPaymentRepository(db *gorm.DB, getter *trmgorm.CtxGetter) PaymentRepository {
	return &paymentRepository{base: newBase(db, getter)}
}

func (r *paymentRepository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.conn(ctx).Create(txn).Error
}

func (r *paymentRepository) GetTransactions(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&txns).Error
	return txns, err
}

func (r *paymentRepository) CompleteTransaction(ctx context.Context, id uuid.UUID) error {
	return r.conn(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.TransactionCompleted, "updated_at": time.Now()}).Error
}

func (r *paymentRepository) CreateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) error {
	return r.conn(ctx).Create(confirmation).Error
}

func (r *paymentRepository) GetConfirmation(ctx context.Context, id uuid.UUID) (*models.PaymentConfirmation, error) {
	var confirmation models.PaymentConfirmation
	err := r.conn(ctx).First(&confirmation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &confirmation, nil
}

func (r *paymentRepository) GetConfirmations(ctx context.Context, orderID uuid.UUID) ([]models.PaymentConfirmation, error) {
	var confirmations []models.PaymentConfirmation
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&confirmations).Error
	return confirmations, err
}

func (r *paymentRepository) Confirm(ctx context.Context, id, confirmedBy uuid.UUID, method string, at time.Time) (bool, error) {
	res := r.conn(ctx).
		Model(&models.PaymentConfirmation{}).
		Where("id = ? AND status = ?", id, models.ConfirmationPending).
		Updates(map[string]interface{}{
			"status":              models.ConfirmationConfirmed,
			"confirmed_by":        confirmedBy,
			"confirmation_method": method,
			"confirmed_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) CountPendingConfirmations(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Model(&models.PaymentConfirmation{}).
		Where("order_id = ? AND status = ?", orderID, models.ConfirmationPending).
		Count(&count).Error
	return count, err
}

func (r *paymentRepository) CreateTipDistribution(ctx context.Context, tip *models.TipDistribution) error {
	return r.conn(ctx).Create(tip).Error
}

func (r *paymentRepository) GetTipDistributions(ctx context.Context, orderID uuid.UUID) ([]models.TipDistribution, error) {
	var tips []models.TipDistribution
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&tips).Error
	return tips, err
}

func (r *paymentRepository) GetCoordination(ctx context.Context, orderID uuid.UUID) (*models.PaymentCoordination, error) {
	var coordination models.PaymentCoordination
	err := r.conn(ctx).First(&coordination, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PaymentCoordination{
			OrderID:       orderID,
			PaymentStatus: models.CoordinationPending,
			TotalPaid:     decimal.Zero,
			TotalRefunded: decimal.Zero,
			TipAmount:     decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &coordination, nil
}

func (r *paymentRepository) SaveCoordination(ctx context.Context, coordination *models.PaymentCoordination) error {
	coordination.UpdatedAt = time.Now()
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(coordination).Error
}
