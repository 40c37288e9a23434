package services

import (
	"context"
	"errors"
	"fmt"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/redis"
	"order_dispatch/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	paymentKeyTTL     = 24 * time.Hour
	paymentKeyPending = "pending"

	defaultConfirmationMethod = "app"
)

var hundred = decimal.NewFromInt(100)

type PaymentRequest struct {
	OrderID               uuid.UUID              `json:"order_id" validate:"required"`
	CustomerID            uuid.UUID              `json:"customer_id" validate:"required"`
	TransactionType       models.TransactionType `json:"transaction_type" validate:"required"`
	Amount                decimal.Decimal        `json:"amount"`
	PaymentMethod         string                 `json:"payment_method" validate:"required"`
	ExternalTransactionID string                 `json:"external_transaction_id"`
}

type TipRequest struct {
	OrderID          uuid.UUID        `json:"-"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	DriverPercentage *decimal.Decimal `json:"driver_percentage"`
}

type PaymentOverview struct {
	Coordination  *models.PaymentCoordination  `json:"coordination"`
	Transactions  []models.PaymentTransaction  `json:"transactions"`
	Confirmations []models.PaymentConfirmation `json:"confirmations"`
	Tips          []models.TipDistribution     `json:"tips"`
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (uuid.UUID, error)
	ConfirmPayment(ctx context.Context, confirmationID, confirmedBy uuid.UUID, method string) (bool, error)
	ProcessTip(ctx context.Context, req TipRequest) (uuid.UUID, error)
	GetPaymentOverview(ctx context.Context, orderID uuid.UUID) (*PaymentOverview, error)
}

type paymentService struct {
	trm           Transactor
	orders        repository.OrderRepository
	payments      repository.PaymentRepository
	keys          KeyStore
	notifications NotificationService
	now           func() time.Time
}

func NewPaymentService(
	trm Transactor,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	keys KeyStore,
	notifications NotificationService,
) PaymentService {
	return &paymentService{
		trm:           trm,
		orders:        orders,
		payments:      payments,
		keys:          keys,
		notifications: notifications,
		now:           time.Now,
	}
}

func paymentKey(req PaymentRequest) string {
	return fmt.Sprintf("payment:%s:%s:%s", req.OrderID, req.TransactionType, req.ExternalTransactionID)
}

// SplitTip returns the driver and restaurant shares of a tip. The driver
// share is rounded to cents and the restaurant gets the remainder.
func SplitTip(total, driverPercentage decimal.Decimal) (driver, restaurant decimal.Decimal) {
	driver = total.Mul(driverPercentage).Div(hundred).Round(2)
	return driver, total.Sub(driver)
}

// ProcessPayment records a payment or refund and returns its transaction
// id. Repeating a request with the same external transaction id returns
// the original id.
func (s *paymentService) ProcessPayment(ctx context.Context, req PaymentRequest) (uuid.UUID, error) {
	const op = "PaymentService.ProcessPayment"

	if !req.TransactionType.IsValid() {
		return uuid.Nil, apperrors.Invalid(op, fmt.Sprintf("unknown transaction type %q", req.TransactionType))
	}
	if !req.Amount.IsPositive() {
		return uuid.Nil, apperrors.Invalid(op, "amount must be greater than zero")
	}
	if req.PaymentMethod == "" {
		return uuid.Nil, apperrors.Invalid(op, "payment method is required")
	}

	var key string
	if req.ExternalTransactionID != "" {
		key = paymentKey(req)
		acquired, err := s.keys.AcquireKey(ctx, key, paymentKeyPending, paymentKeyTTL)
		if err != nil {
			return uuid.Nil, apperrors.OpError(op, err)
		}
		if !acquired {
			return s.existingTransaction(ctx, op, key)
		}
	}

	txn := &models.PaymentTransaction{
		ID:                    uuid.New(),
		OrderID:               req.OrderID,
		CustomerID:            req.CustomerID,
		TransactionType:       req.TransactionType,
		Amount:                req.Amount.Round(2),
		PaymentMethod:         req.PaymentMethod,
		ExternalTransactionID: req.ExternalTransactionID,
		Status:                models.TransactionPending,
	}
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != req.CustomerID {
			return apperrors.Invalid(op, "order belongs to another customer")
		}

		coordination, err := s.payments.GetCoordination(ctx, req.OrderID)
		if err != nil {
			return err
		}
		switch req.TransactionType {
		case models.TransactionPayment:
			coordination.TotalPaid = coordination.TotalPaid.Add(txn.Amount)
			coordination.PaymentStatus = models.CoordinationAwaitingConfirmation
		case models.TransactionRefund:
			refundable := coordination.TotalPaid.Sub(coordination.TotalRefunded)
			if txn.Amount.GreaterThan(refundable) {
				return apperrors.Invalid(op, fmt.Sprintf("refund exceeds the refundable amount %s", refundable.StringFixed(2)))
			}
			coordination.TotalRefunded = coordination.TotalRefunded.Add(txn.Amount)
			if coordination.TotalRefunded.GreaterThanOrEqual(coordination.TotalPaid) {
				coordination.PaymentStatus = models.CoordinationRefunded
			}
		}

		if err := s.payments.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		if err := s.payments.CreateConfirmation(ctx, &models.PaymentConfirmation{
			ID:            uuid.New(),
			OrderID:       req.OrderID,
			TransactionID: txn.ID,
			ConfirmerType: string(models.RecipientCustomer),
			Status:        models.ConfirmationPending,
		}); err != nil {
			return err
		}
		return s.payments.SaveCoordination(ctx, coordination)
	})
	if err != nil {
		if key != "" {
			if relErr := s.keys.ReleaseKey(ctx, key); relErr != nil {
				log.Ctx(ctx).Warn().Err(relErr).Str("key", key).Msg("failed to release payment key")
			}
		}
		return uuid.Nil, apperrors.OpError(op, err)
	}

	if key != "" {
		if err := s.keys.SetKey(ctx, key, txn.ID.String(), paymentKeyTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to store payment key")
		}
	}

	s.notifyCustomer(ctx, req.CustomerID, req.OrderID,
		fmt.Sprintf("A %s of %s was recorded", req.TransactionType, txn.Amount.StringFixed(2)),
		map[string]interface{}{"transaction_id": txn.ID, "transaction_type": req.TransactionType})

	log.Ctx(ctx).Info().
		Str("order_id", req.OrderID.String()).
		Str("transaction_id", txn.ID.String()).
		Str("type", string(req.TransactionType)).
		Msg("payment processed")
	return txn.ID, nil
}

func (s *paymentService) existingTransaction(ctx context.Context, op, key string) (uuid.UUID, error) {
	val, err := s.keys.GetKey(ctx, key)
	if errors.Is(err, redis.ErrCacheMiss) {
		return uuid.Nil, apperrors.Conflict(op, "payment is being processed, retry shortly")
	}
	if err != nil {
		return uuid.Nil, apperrors.OpError(op, err)
	}
	if val == paymentKeyPending {
		return uuid.Nil, apperrors.Conflict(op, "payment is being processed, retry shortly")
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, apperrors.OpError(op, err)
	}
	return id, nil
}

// ConfirmPayment confirms a pending confirmation. It returns false when the
// confirmation was already confirmed.
func (s *paymentService) ConfirmPayment(ctx context.Context, confirmationID, confirmedBy uuid.UUID, method string) (bool, error) {
	const op = "PaymentService.ConfirmPayment"

	if method == "" {
		method = defaultConfirmationMethod
	}

	var order *models.Order
	var confirmed bool
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		confirmation, err := s.payments.GetConfirmation(ctx, confirmationID)
		if err != nil {
			return err
		}
		if order, err = s.orders.LockByID(ctx, confirmation.OrderID); err != nil {
			return err
		}

		confirmed, err = s.payments.Confirm(ctx, confirmationID, confirmedBy, method, s.now())
		if err != nil || !confirmed {
			return err
		}
		if err := s.payments.CompleteTransaction(ctx, confirmation.TransactionID); err != nil {
			return err
		}

		pending, err := s.payments.CountPendingConfirmations(ctx, confirmation.OrderID)
		if err != nil || pending > 0 {
			return err
		}
		coordination, err := s.payments.GetCoordination(ctx, confirmation.OrderID)
		if err != nil {
			return err
		}
		if coordination.PaymentStatus == models.CoordinationRefunded {
			return nil
		}
		coordination.PaymentStatus = models.CoordinationConfirmed
		return s.payments.SaveCoordination(ctx, coordination)
	})
	if err != nil {
		return false, apperrors.OpError(op, err)
	}

	if confirmed {
		s.notifyCustomer(ctx, order.CustomerID, order.ID, "Your payment has been confirmed",
			map[string]interface{}{"confirmation_id": confirmationID})
	}
	return confirmed, nil
}

func (s *paymentService) ProcessTip(ctx context.Context, req TipRequest) (uuid.UUID, error) {
	const op = "PaymentService.ProcessTip"

	if !req.TotalAmount.IsPositive() {
		return uuid.Nil, apperrors.Invalid(op, "tip amount must be greater than zero")
	}
	pct := hundred
	if req.DriverPercentage != nil {
		pct = *req.DriverPercentage
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return uuid.Nil, apperrors.Invalid(op, "driver percentage must be between 0 and 100")
	}

	total := req.TotalAmount.Round(2)
	driver, restaurant := SplitTip(total, pct)
	tip := &models.TipDistribution{
		ID:               uuid.New(),
		OrderID:          req.OrderID,
		TotalAmount:      total,
		DriverPercentage: pct,
		DriverAmount:     driver,
		RestaurantAmount: restaurant,
		Status:           "distributed",
	}

	var order *models.Order
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.LockByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := s.payments.CreateTipDistribution(ctx, tip); err != nil {
			return err
		}
		coordination, err := s.payments.GetCoordination(ctx, req.OrderID)
		if err != nil {
			return err
		}
		coordination.TipAmount = coordination.TipAmount.Add(total)
		return s.payments.SaveCoordination(ctx, coordination)
	})
	if err != nil {
		return uuid.Nil, apperrors.OpError(op, err)
	}

	s.notifyCustomer(ctx, order.CustomerID, order.ID,
		fmt.Sprintf("Thank you for your tip of %s", total.StringFixed(2)),
		map[string]interface{}{"tip_id": tip.ID, "driver_amount": driver, "restaurant_amount": restaurant})
	return tip.ID, nil
}

// GetPaymentOverview loads the order's payment state with the four reads
// running concurrently.
func (s *paymentService) GetPaymentOverview(ctx context.Context, orderID uuid.UUID) (*PaymentOverview, error) {
	const op = "PaymentService.GetPaymentOverview"

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, apperrors.OpError(op, err)
	}

	overview := &PaymentOverview{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overview.Coordination, err = s.payments.GetCoordination(gctx, orderID)
		return err
	})
	g.Go(func() error {
		var err error
		overview.Transactions, err = s.payments.GetTransactions(gctx, orderID)
		return err
	})
	g.Go(func() error {
		var err error
		overview.Confirmations, err = s.payments.GetConfirmations(gctx, orderID)
		return err
	})
	g.Go(func() error {
		var err error
		overview.Tips, err = s.payments.GetTipDistributions(gctx, orderID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return overview, nil
}

func (s *paymentService) notifyCustomer(ctx context.Context, customerID, orderID uuid.UUID, message string, data map[string]interface{}) {
	err := s.notifications.Notify(ctx, &models.Notification{
		RecipientID:   customerID,
		RecipientType: models.RecipientCustomer,
		OrderID:       &orderID,
		Type:          models.NotificationPayment,
		Title:         "Payment update",
		Message:       message,
		Data:          jsonData(data),
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("order_id", orderID.String()).Msg("failed to send payment notification")
	}
}
