package services

import (
	"context"
	"order_dispatch/internal/models"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	store    *store
	keys     *fakeKeys
	cache    *fakeCache
	webhooks *fakeWebhooks

	notifications NotificationService
	dispatcher    DispatchService
	orders        OrderService
	assignments   AssignmentService
	status        StatusService
	expiry        ExpiryService
	preparation   PreparationService
	delivery      DeliveryService
	payments      PaymentService
	restaurants   RestaurantService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newStore()
	trm := &fakeTransactor{store: st}
	orderRepo := fakeOrderRepo{st}
	assignmentRepo := fakeAssignmentRepo{st}
	historyRepo := fakeHistoryRepo{st}
	prepRepo := fakePreparationRepo{st}

	env := &testEnv{
		store:    st,
		keys:     newFakeKeys(),
		cache:    newFakeCache(),
		webhooks: &fakeWebhooks{},
	}
	env.notifications = NewNotificationService(fakeNotificationRepo{st}, nil, nil)
	env.dispatcher = NewDispatchService(
		DispatchConfig{RadiusKm: 15, MaxCandidates: 5, MaxAttempts: 3, AssignmentTTL: 15 * time.Minute},
		trm, orderRepo, fakeRestaurantRepo{st}, assignmentRepo, historyRepo,
		env.keys, env.notifications, env.webhooks,
	)
	env.orders = NewOrderService(trm, orderRepo, fakeItemRepo{st}, assignmentRepo, historyRepo,
		env.dispatcher, env.cache, time.Minute, decimal.NewFromInt(5))
	env.assignments = NewAssignmentService(trm, orderRepo, assignmentRepo, historyRepo, prepRepo)
	env.status = NewStatusService(trm, orderRepo, assignmentRepo, historyRepo)
	env.expiry = NewExpiryService(trm, orderRepo, assignmentRepo, historyRepo)
	env.preparation = NewPreparationService(trm, orderRepo, prepRepo, historyRepo)
	env.delivery = NewDeliveryService(DeliveryConfig{NearbyMeters: 500}, trm, orderRepo, fakeDeliveryRepo{st},
		historyRepo, env.cache, env.keys, env.notifications, nil)
	env.payments = NewPaymentService(trm, orderRepo, fakePaymentRepo{st}, env.keys, env.notifications)

	restaurants := NewRestaurantService(fakeRestaurantRepo{st})
	restaurants.(*restaurantService).cost = bcrypt.MinCost
	env.restaurants = restaurants

	t.Cleanup(env.dispatcher.Wait)
	return env
}

func ptr[T any](v T) *T {
	return &v
}

// Almaty city centre and two points a few kilometres away.
var (
	deliveryPoint = [2]float64{43.2380, 76.9450}
	nearPoint     = [2]float64{43.2500, 76.9300}
	midPoint      = [2]float64{43.2700, 76.9100}
	farPoint      = [2]float64{44.0000, 78.0000}
)

func (e *testEnv) addRestaurant(t *testing.T, name string, at [2]float64, webhookURL string) models.Restaurant {
	t.Helper()
	restaurant := models.Restaurant{
		ID:         uuid.New(),
		Name:       name,
		Email:      name + "@example.com",
		Latitude:   at[0],
		Longitude:  at[1],
		WebhookURL: webhookURL,
		IsActive:   true,
	}
	require.NoError(t, fakeRestaurantRepo{e.store}.Create(context.Background(), &restaurant))
	return restaurant
}

func orderRequest(customerID uuid.UUID, withLocation bool) *CreateOrderRequest {
	req := &CreateOrderRequest{
		CustomerID:      customerID,
		CustomerName:    "Aida",
		DeliveryAddress: "Abay Ave 10",
		PaymentMethod:   "card",
		Items: []OrderItemRequest{
			{Name: "Plov", Price: decimal.RequireFromString("12.50"), Quantity: 2},
			{Name: "Tea", Price: decimal.RequireFromString("1.25"), Quantity: 1},
		},
	}
	if withLocation {
		req.DeliveryLatitude = ptr(deliveryPoint[0])
		req.DeliveryLongitude = ptr(deliveryPoint[1])
	}
	return req
}

// placeDispatchedOrder creates an order offered to every given restaurant.
func (e *testEnv) placeDispatchedOrder(t *testing.T) *CreateOrderResult {
	t.Helper()
	result, err := e.orders.CreateOrder(context.Background(), orderRequest(uuid.New(), true))
	require.NoError(t, err)
	require.Equal(t, models.OrderAwaitingRestaurant, result.Order.Status)
	return result
}

func (e *testEnv) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := fakeOrderRepo{e.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (e *testEnv) assignmentStatuses(t *testing.T, orderID uuid.UUID) map[uuid.UUID]models.AssignmentStatus {
	t.Helper()
	assignments, err := fakeAssignmentRepo{e.store}.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	out := make(map[uuid.UUID]models.AssignmentStatus, len(assignments))
	for _, a := range assignments {
		out[a.RestaurantID] = a.Status
	}
	return out
}

func (e *testEnv) notificationsOf(recipientID uuid.UUID, typ models.NotificationType) []models.Notification {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var out []models.Notification
	for _, n := range e.store.notifications {
		if n.RecipientID == recipientID && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}
