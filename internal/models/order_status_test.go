package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathTransitions(t *testing.T) {
	path := []OrderStatus{
		OrderPending,
		OrderAwaitingRestaurant,
		OrderRestaurantAccepted,
		OrderPreparing,
		OrderReadyForPickup,
		OrderOnTheWay,
		OrderDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.Truef(t, path[i].CanTransitionTo(path[i+1]), "%s -> %s", path[i], path[i+1])

		next, ok := path[i].NextExpected()
		assert.True(t, ok)
		assert.Equal(t, path[i+1], next)
	}
}

func TestRejectedTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
	}{
		{OrderPending, OrderRestaurantAccepted},
		{OrderDelivered, OrderCancelled},
		{OrderCancelled, OrderPending},
		{OrderOnTheWay, OrderPreparing},
		{OrderRefunded, OrderDelivered},
		{OrderAwaitingRestaurant, OrderAwaitingRestaurant},
	}
	for _, tc := range cases {
		assert.Falsef(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRedispatchTransitions(t *testing.T) {
	assert.True(t, OrderNoRestaurantAccepted.CanTransitionTo(OrderAwaitingRestaurant))
	assert.True(t, OrderNoRestaurantAvailable.CanTransitionTo(OrderAwaitingRestaurant))
	assert.True(t, OrderAwaitingRestaurant.CanTransitionTo(OrderNoRestaurantAccepted))
}

func TestCanCancel(t *testing.T) {
	for _, s := range []OrderStatus{OrderPending, OrderAwaitingRestaurant, OrderRestaurantAccepted, OrderProcessing, OrderPreparing} {
		assert.Truef(t, s.CanCancel(), "%s", s)
	}
	for _, s := range []OrderStatus{OrderReadyForPickup, OrderOnTheWay, OrderDelivered, OrderCancelled} {
		assert.Falsef(t, s.CanCancel(), "%s", s)
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, OrderOnTheWay.IsValid())
	assert.False(t, OrderStatus("assignment_failed").IsValid())
	assert.Equal(t, "picked_up_at", OrderOnTheWay.TimestampColumn())
	assert.Equal(t, "", OrderAwaitingRestaurant.TimestampColumn())
	assert.Equal(t, "Your order status has been updated", OrderStatus("unknown").Message())

	_, ok := OrderDelivered.NextExpected()
	assert.False(t, ok)

	allowed := OrderPending.AllowedTransitions()
	allowed[0] = OrderRefunded
	assert.True(t, OrderPending.CanTransitionTo(OrderAwaitingRestaurant))
}

func TestNormalizeChangeSource(t *testing.T) {
	assert.Equal(t, ChangedByRestaurant, NormalizeChangeSource("restaurant"))
	assert.Equal(t, ChangedBySystem, NormalizeChangeSource(""))
	assert.Equal(t, ChangedBySystem, NormalizeChangeSource("admin"))
}
