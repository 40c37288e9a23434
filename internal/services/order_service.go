package services

import (
	"context"
	"errors"
	"fmt"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/metrics"
	"order_dispatch/internal/models"
	"order_dispatch/internal/realtime"
	"order_dispatch/internal/redis"
	"order_dispatch/internal/repository"
	"order_dispatch/pkg/geo"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultRecentOrders = 20

type OrderItemRequest struct {
	MealID     *string         `json:"meal_id"`
	MenuItemID *string         `json:"menu_item_id"`
	Name       string          `json:"name" validate:"required,max=255"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
	SourceType string          `json:"source_type" validate:"omitempty,max=64"`
}

type CreateOrderRequest struct {
	CustomerID           uuid.UUID          `json:"customer_id" validate:"required"`
	CustomerName         string             `json:"customer_name" validate:"required,max=255"`
	CustomerEmail        string             `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone        string             `json:"customer_phone" validate:"omitempty,max=32"`
	DeliveryAddress      string             `json:"delivery_address" validate:"required"`
	DeliveryLatitude     *float64           `json:"delivery_latitude"`
	DeliveryLongitude    *float64           `json:"delivery_longitude"`
	DeliveryInstructions string             `json:"delivery_instructions"`
	PaymentMethod        string             `json:"payment_method" validate:"required,max=64"`
	TotalAmount          *decimal.Decimal   `json:"total_amount"`
	AssignmentSource     string             `json:"assignment_source" validate:"omitempty,oneof=auto manual"`
	Items                []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResult struct {
	Order       *models.Order                 `json:"order"`
	Assignments []models.RestaurantAssignment `json:"assignments"`
}

type OrderDetails struct {
	Order       *models.Order                 `json:"order"`
	Assignments []models.RestaurantAssignment `json:"assignments"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetails, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error)
	OnStatusChange(ctx context.Context, change realtime.StatusChange) error
}

type orderService struct {
	trm         Transactor
	orders      repository.OrderRepository
	items       repository.OrderItemRepository
	assignments repository.AssignmentRepository
	history     repository.HistoryRepository
	dispatcher  DispatchService
	cache       OrderCache
	cacheTTL    time.Duration
	deliveryFee decimal.Decimal
	validate    *validator.Validate
	now         func() time.Time
}

func NewOrderService(
	trm Transactor,
	orders repository.OrderRepository,
	items repository.OrderItemRepository,
	assignments repository.AssignmentRepository,
	history repository.HistoryRepository,
	dispatcher DispatchService,
	cache OrderCache,
	cacheTTL time.Duration,
	deliveryFee decimal.Decimal,
) OrderService {
	return &orderService{
		trm:         trm,
		orders:      orders,
		items:       items,
		assignments: assignments,
		history:     history,
		dispatcher:  dispatcher,
		cache:       cache,
		cacheTTL:    cacheTTL,
		deliveryFee: deliveryFee,
		validate:    validator.New(),
		now:         time.Now,
	}
}

func (s *orderService) validateRequest(req *CreateOrderRequest) error {
	const op = "OrderService.validateRequest"

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return apperrors.Invalid(op, "invalid fields: "+strings.Join(fields, ", "))
		}
		return apperrors.WithCode(op, err, apperrors.EINVALID)
	}

	for i, item := range req.Items {
		if item.Price.IsNegative() {
			return apperrors.Invalid(op, fmt.Sprintf("item %d has a negative price", i))
		}
	}

	if (req.DeliveryLatitude == nil) != (req.DeliveryLongitude == nil) {
		return apperrors.Invalid(op, "delivery latitude and longitude must be sent together")
	}
	if req.DeliveryLatitude != nil {
		p := geo.Point{Latitude: *req.DeliveryLatitude, Longitude: *req.DeliveryLongitude}
		if !p.Valid() {
			return apperrors.Invalid(op, "delivery coordinates are out of range")
		}
	}
	return nil
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	const op = "OrderService.CreateOrder"

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]models.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, it := range req.Items {
		source := it.SourceType
		if source == "" {
			source = models.DefaultItemSource
		}
		item := models.OrderItem{
			MealID:     it.MealID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			SourceType: source,
			CreatedAt:  now,
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	total := subtotal.Add(s.deliveryFee)
	if req.TotalAmount != nil {
		total = *req.TotalAmount
	}
	if total.LessThan(subtotal) {
		return nil, apperrors.Invalid(op, "total amount is below the items subtotal")
	}

	source := req.AssignmentSource
	if source == "" {
		source = "auto"
	}
	order := &models.Order{
		ID:                   uuid.New(),
		CustomerID:           req.CustomerID,
		CustomerName:         req.CustomerName,
		CustomerEmail:        req.CustomerEmail,
		CustomerPhone:        req.CustomerPhone,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryLatitude:     req.DeliveryLatitude,
		DeliveryLongitude:    req.DeliveryLongitude,
		DeliveryInstructions: req.DeliveryInstructions,
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        "pending",
		Subtotal:             subtotal,
		DeliveryFee:          total.Sub(subtotal),
		TotalAmount:          total,
		Status:               models.OrderPending,
		AssignmentSource:     source,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		number, err := s.orders.NextOrderNumber(ctx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := s.items.CreateBatch(ctx, items); err != nil {
			return err
		}
		customerID := order.CustomerID
		return s.history.RecordStatus(ctx, &models.OrderStatusHistory{
			OrderID:       order.ID,
			ToStatus:      models.OrderPending,
			ChangedBy:     &customerID,
			ChangedByType: models.ChangedByCustomer,
			Notes:         "order placed",
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	metrics.OrdersCreated.Inc()
	s.dropRecentOrders(ctx, order.CustomerID)

	log.Ctx(ctx).Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("total", total.StringFixed(2)).
		Msg("order created")

	result := &CreateOrderResult{}
	if dispatched, err := s.dispatcher.Dispatch(ctx, order.ID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID.String()).Msg("initial dispatch failed")
	} else {
		result.Assignments = dispatched.Assignments
	}

	result.Order, err = s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return result, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetails, error) {
	const op = "OrderService.GetOrder"

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	assignments, err := s.assignments.GetByOrderID(ctx, id)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return &OrderDetails{Order: order, Assignments: assignments}, nil
}

// ListCustomerOrders returns the customer's latest orders. The default
// page is cached until one of the customer's orders changes.
func (s *orderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	const op = "OrderService.ListCustomerOrders"

	if limit <= 0 {
		limit = defaultRecentOrders
	}
	cacheable := s.cache != nil && limit == defaultRecentOrders

	if cacheable {
		var cached []models.Order
		err := s.cache.GetRecentOrders(ctx, customerID, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Msg("recent orders cache read failed")
		}
	}

	orders, err := s.orders.GetByCustomerID(ctx, customerID, limit)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	if cacheable {
		if err := s.cache.SetRecentOrders(ctx, customerID, orders, s.cacheTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("recent orders cache write failed")
		}
	}
	return orders, nil
}

func (s *orderService) OnStatusChange(ctx context.Context, change realtime.StatusChange) error {
	s.dropRecentOrders(ctx, change.CustomerID)
	return nil
}

func (s *orderService) dropRecentOrders(ctx context.Context, customerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteRecentOrders(ctx, customerID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("customer_id", customerID.String()).Msg("failed to drop recent orders cache")
	}
}
