package handlers

import (
	"context"
	"net/http"
	"order_dispatch/internal/logger"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type APIHandler struct {
	checks map[string]HealthCheck
}

func NewAPIHandler(checks map[string]HealthCheck) *APIHandler {
	return &APIHandler{checks: checks}
}

// Health runs every check with a short deadline. Any failure turns the
// response into a 503.
func (h *APIHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(gin.H, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}

// Handlers bundles everything the router mounts.
type Handlers struct {
	API           *APIHandler
	Orders        *OrderHandler
	Restaurants   *RestaurantHandler
	Deliveries    *DeliveryHandler
	Payments      *PaymentHandler
	Notifications *NotificationHandler
	Realtime      *RealtimeHandler
}

func NewRouter(h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware())

	router.GET("/healthz", h.API.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/orders/:id", h.Realtime.ServeOrder)

	api := router.Group("/api")
	{
		api.POST("/orders", h.Orders.CreateOrder)
		api.GET("/orders/:id", h.Orders.GetOrder)
		api.GET("/orders/:id/history", h.Orders.GetHistory)
		api.PATCH("/orders/:id/status", h.Orders.UpdateStatus)
		api.POST("/orders/:id/cancel", h.Orders.CancelOrder)
		api.POST("/orders/:id/redispatch", h.Orders.Redispatch)
		api.GET("/orders/:id/preparation", h.Orders.GetPreparation)
		api.GET("/customers/:id/orders", h.Orders.ListCustomerOrders)

		api.POST("/restaurants", h.Restaurants.Register)

		api.POST("/deliveries", h.Deliveries.AssignDriver)
		api.GET("/deliveries/nearby", h.Deliveries.FindNearby)
		api.POST("/deliveries/:id/location", h.Deliveries.UpdateLocation)
		api.GET("/deliveries/:id/location", h.Deliveries.GetCurrentLocation)
		api.GET("/deliveries/:id/locations", h.Deliveries.GetLocationHistory)
		api.POST("/deliveries/:id/pickup", h.Deliveries.PickUp)
		api.POST("/deliveries/:id/complete", h.Deliveries.Complete)
		api.POST("/deliveries/:id/reject", h.Deliveries.Reject)

		api.GET("/orders/:id/payments", h.Payments.GetOverview)
		api.POST("/orders/:id/tips", h.Payments.ProcessTip)
		api.POST("/payments", h.Payments.ProcessPayment)
		api.POST("/payments/confirmations/:id/confirm", h.Payments.ConfirmPayment)

		api.GET("/recipients/:id/notifications", h.Notifications.List)
		api.POST("/recipients/:id/notifications/read-all", h.Notifications.MarkAllAsRead)
		api.POST("/notifications/:id/read", h.Notifications.MarkAsRead)
	}

	restaurant := router.Group("/api/restaurant", h.Restaurants.RequireRestaurant())
	{
		restaurant.GET("/assignments", h.Restaurants.ListAssignments)
		restaurant.POST("/orders/:id/accept", h.Restaurants.AcceptOrder)
		restaurant.POST("/orders/:id/reject", h.Restaurants.RejectOrder)
		restaurant.POST("/orders/:id/advance", h.Restaurants.AdvancePreparation)
	}

	return router
}
