package services

import (
	"context"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/realtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderDispatchesToNearbyRestaurants(t *testing.T) {
	env := newTestEnv(t)
	near := env.addRestaurant(t, "near", nearPoint, "")
	mid := env.addRestaurant(t, "mid", midPoint, "")
	env.addRestaurant(t, "far", farPoint, "")

	result, err := env.orders.CreateOrder(context.Background(), orderRequest(uuid.New(), true))
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, models.OrderAwaitingRestaurant, order.Status)
	assert.Regexp(t, `^ORD_\d{8}_001$`, order.OrderNumber)
	assert.True(t, decimal.RequireFromString("26.25").Equal(order.Subtotal))
	assert.True(t, decimal.RequireFromString("5").Equal(order.DeliveryFee))
	assert.True(t, decimal.RequireFromString("31.25").Equal(order.TotalAmount))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, models.DefaultItemSource, order.Items[0].SourceType)

	require.Len(t, result.Assignments, 2)
	assert.Equal(t, near.ID, result.Assignments[0].RestaurantID)
	assert.Equal(t, mid.ID, result.Assignments[1].RestaurantID)
	for _, a := range result.Assignments {
		assert.Equal(t, models.AssignmentPending, a.Status)
		assert.Equal(t, 1, a.Attempt)
	}

	assert.Len(t, env.notificationsOf(near.ID, models.NotificationNewAssignment), 1)
	assert.Len(t, env.notificationsOf(mid.ID, models.NotificationNewAssignment), 1)

	history, err := env.status.GetStatusHistory(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderPending, history[0].ToStatus)
	assert.Equal(t, models.ChangedByCustomer, history[0].ChangedByType)
	assert.Equal(t, models.OrderAwaitingRestaurant, history[1].ToStatus)
}

func TestCreateOrderWithoutRestaurantsNearby(t *testing.T) {
	env := newTestEnv(t)
	env.addRestaurant(t, "far", farPoint, "")

	result, err := env.orders.CreateOrder(context.Background(), orderRequest(uuid.New(), true))
	require.NoError(t, err)

	assert.Equal(t, models.OrderNoRestaurantAvailable, result.Order.Status)
	assert.Empty(t, result.Assignments)
}

func TestCreateOrderWithoutCoordinates(t *testing.T) {
	env := newTestEnv(t)
	env.addRestaurant(t, "near", nearPoint, "")

	result, err := env.orders.CreateOrder(context.Background(), orderRequest(uuid.New(), false))
	require.NoError(t, err)

	assert.Equal(t, models.OrderNoRestaurantAvailable, result.Order.Status)
	assert.Empty(t, result.Assignments)
}

func TestCreateOrderValidation(t *testing.T) {
	cases := map[string]func(r *CreateOrderRequest){
		"missing customer":   func(r *CreateOrderRequest) { r.CustomerID = uuid.Nil },
		"missing address":    func(r *CreateOrderRequest) { r.DeliveryAddress = "" },
		"no items":           func(r *CreateOrderRequest) { r.Items = nil },
		"zero quantity":      func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 },
		"negative price":     func(r *CreateOrderRequest) { r.Items[1].Price = decimal.NewFromInt(-1) },
		"unpaired latitude":  func(r *CreateOrderRequest) { r.DeliveryLongitude = nil },
		"latitude too large": func(r *CreateOrderRequest) { r.DeliveryLatitude = ptr(91.0) },
		"total below items":  func(r *CreateOrderRequest) { r.TotalAmount = ptr(decimal.NewFromInt(10)) },
		"bad source":         func(r *CreateOrderRequest) { r.AssignmentSource = "robot" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			req := orderRequest(uuid.New(), true)
			mutate(req)

			_, err := env.orders.CreateOrder(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, apperrors.EINVALID, apperrors.Code(err))
			assert.Empty(t, env.store.orders)
		})
	}
}

func TestCreateOrderUsesExplicitTotal(t *testing.T) {
	env := newTestEnv(t)
	req := orderRequest(uuid.New(), false)
	req.TotalAmount = ptr(decimal.RequireFromString("30.00"))

	result, err := env.orders.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.75").Equal(result.Order.DeliveryFee))
}

func TestListCustomerOrdersCachesUntilStatusChange(t *testing.T) {
	env := newTestEnv(t)
	customer := uuid.New()
	ctx := context.Background()

	first, err := env.orders.CreateOrder(ctx, orderRequest(customer, false))
	require.NoError(t, err)

	orders, err := env.orders.ListCustomerOrders(ctx, customer, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Contains(t, env.cache.recent, customer)

	// written straight to the store so the cache is not invalidated
	require.NoError(t, fakeOrderRepo{env.store}.Create(ctx, &models.Order{
		ID:         uuid.New(),
		CustomerID: customer,
		Status:     models.OrderPending,
		CreatedAt:  first.Order.CreatedAt.Add(time.Second),
	}))
	orders, err = env.orders.ListCustomerOrders(ctx, customer, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	handler := env.orders.(realtime.StatusHandler)
	require.NoError(t, handler.OnStatusChange(ctx, realtime.StatusChange{
		OrderID:    first.Order.ID,
		CustomerID: customer,
		OldStatus:  models.OrderPending,
		NewStatus:  models.OrderCancelled,
	}))
	orders, err = env.orders.ListCustomerOrders(ctx, customer, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestGetOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.GetOrder(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ENOTFOUND))
}
