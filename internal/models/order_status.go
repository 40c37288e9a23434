package models

type OrderStatus string

const (
	OrderPending               OrderStatus = "pending"
	OrderAwaitingRestaurant    OrderStatus = "awaiting_restaurant"
	OrderRestaurantAccepted    OrderStatus = "restaurant_accepted"
	OrderProcessing            OrderStatus = "processing"
	OrderPreparing             OrderStatus = "preparing"
	OrderReadyForPickup        OrderStatus = "ready_for_pickup"
	OrderOnTheWay              OrderStatus = "on_the_way"
	OrderDelivered             OrderStatus = "delivered"
	OrderCancelled             OrderStatus = "cancelled"
	OrderNoRestaurantAccepted  OrderStatus = "no_restaurant_accepted"
	OrderNoRestaurantAvailable OrderStatus = "no_restaurant_available"
	OrderRefunded              OrderStatus = "refunded"
)

// orderTransitions is the full state machine. Cancelling through the API is
// further limited to CanCancel statuses, so the ready_for_pickup and
// on_the_way cancel edges are only valid for rows written outside it.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:               {OrderAwaitingRestaurant, OrderNoRestaurantAvailable, OrderCancelled},
	OrderAwaitingRestaurant:    {OrderRestaurantAccepted, OrderNoRestaurantAccepted, OrderCancelled},
	OrderRestaurantAccepted:    {OrderProcessing, OrderPreparing, OrderCancelled},
	OrderProcessing:            {OrderPreparing, OrderCancelled},
	OrderPreparing:             {OrderReadyForPickup, OrderCancelled},
	OrderReadyForPickup:        {OrderOnTheWay, OrderCancelled},
	OrderOnTheWay:              {OrderDelivered, OrderCancelled},
	OrderDelivered:             {OrderRefunded},
	OrderCancelled:             {OrderRefunded},
	OrderNoRestaurantAccepted:  {OrderAwaitingRestaurant, OrderNoRestaurantAvailable, OrderCancelled},
	OrderNoRestaurantAvailable: {OrderAwaitingRestaurant, OrderCancelled},
	OrderRefunded:              {},
}

var nextExpectedStatus = map[OrderStatus]OrderStatus{
	OrderPending:            OrderAwaitingRestaurant,
	OrderAwaitingRestaurant: OrderRestaurantAccepted,
	OrderRestaurantAccepted: OrderPreparing,
	OrderProcessing:         OrderPreparing,
	OrderPreparing:          OrderReadyForPickup,
	OrderReadyForPickup:     OrderOnTheWay,
	OrderOnTheWay:           OrderDelivered,
}

var statusMessages = map[OrderStatus]string{
	OrderPending:               "Your order has been received",
	OrderAwaitingRestaurant:    "Looking for a restaurant to prepare your order",
	OrderRestaurantAccepted:    "A restaurant accepted your order",
	OrderProcessing:            "Your order is being processed",
	OrderPreparing:             "Your meal is being prepared",
	OrderReadyForPickup:        "Your order is ready for pickup",
	OrderOnTheWay:              "Your order is on the way",
	OrderDelivered:             "Your order has been delivered",
	OrderCancelled:             "Your order has been cancelled",
	OrderNoRestaurantAccepted:  "No restaurant accepted your order",
	OrderNoRestaurantAvailable: "No restaurant is available near your delivery address",
	OrderRefunded:              "Your order has been refunded",
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the statuses reachable from s.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	allowed := orderTransitions[s]
	out := make([]OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

func (s OrderStatus) CanCancel() bool {
	switch s {
	case OrderPending, OrderAwaitingRestaurant, OrderRestaurantAccepted, OrderProcessing, OrderPreparing:
		return true
	}
	return false
}

// NextExpected returns the next status on the happy path, if any.
func (s OrderStatus) NextExpected() (OrderStatus, bool) {
	next, ok := nextExpectedStatus[s]
	return next, ok
}

// Message returns the customer-facing text for s.
func (s OrderStatus) Message() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return "Your order status has been updated"
}

// TimestampColumn names the orders column stamped when s is entered.
func (s OrderStatus) TimestampColumn() string {
	switch s {
	case OrderRestaurantAccepted:
		return "accepted_at"
	case OrderPreparing:
		return "preparation_started_at"
	case OrderReadyForPickup:
		return "ready_at"
	case OrderOnTheWay:
		return "picked_up_at"
	case OrderDelivered:
		return "delivered_at"
	case OrderCancelled:
		return "cancelled_at"
	}
	return ""
}

// DispatchableStatuses are the statuses from which restaurants may be (re)assigned.
var DispatchableStatuses = []OrderStatus{OrderPending, OrderNoRestaurantAccepted, OrderNoRestaurantAvailable}

// ChangeSource identifies who caused a status change.
type ChangeSource string

const (
	ChangedBySystem     ChangeSource = "system"
	ChangedByCustomer   ChangeSource = "customer"
	ChangedByRestaurant ChangeSource = "restaurant"
	ChangedByDelivery   ChangeSource = "delivery"
)

// NormalizeChangeSource maps unknown values to system.
func NormalizeChangeSource(s string) ChangeSource {
	switch ChangeSource(s) {
	case ChangedByCustomer, ChangedByRestaurant, ChangedByDelivery:
		return ChangeSource(s)
	}
	return ChangedBySystem
}
