package handlers

import (
	"context"
	"net/http"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	headerRestaurantID  = "X-Restaurant-ID"
	headerRestaurantKey = "X-Restaurant-Key"

	restaurantContextKey = "restaurant"
)

type RestaurantHandler struct {
	restaurants services.RestaurantService
	assignments services.AssignmentService
	preparation services.PreparationService
}

func NewRestaurantHandler(
	restaurants services.RestaurantService,
	assignments services.AssignmentService,
	preparation services.PreparationService,
) *RestaurantHandler {
	return &RestaurantHandler{
		restaurants: restaurants,
		assignments: assignments,
		preparation: preparation,
	}
}

type RespondRequest struct {
	Notes string `json:"notes"`
}

// RequireRestaurant authenticates the calling restaurant from its id and
// API key headers.
func (h *RestaurantHandler) RequireRestaurant() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "RestaurantHandler.RequireRestaurant"

		id, err := uuid.Parse(c.GetHeader(headerRestaurantID))
		if err != nil {
			respondError(c, apperrors.Unauthorized(op, "missing restaurant credentials"))
			return
		}
		restaurant, err := h.restaurants.Authenticate(c.Request.Context(), id, c.GetHeader(headerRestaurantKey))
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(restaurantContextKey, restaurant)
		ctx := log.Ctx(c.Request.Context()).With().Str("restaurant_id", restaurant.ID.String()).Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func currentRestaurant(c *gin.Context) *models.Restaurant {
	return c.MustGet(restaurantContextKey).(*models.Restaurant)
}

func (h *RestaurantHandler) Register(c *gin.Context) {
	var req services.RegisterRestaurantRequest
	if !bindJSON(c, &req, false) {
		return
	}

	registered, err := h.restaurants.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registered)
}

func (h *RestaurantHandler) ListAssignments(c *gin.Context) {
	restaurant := currentRestaurant(c)

	assignments, err := h.assignments.ListPendingAssignments(c.Request.Context(), restaurant.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

func (h *RestaurantHandler) AcceptOrder(c *gin.Context) {
	h.respond(c, h.assignments.AcceptOrder)
}

func (h *RestaurantHandler) RejectOrder(c *gin.Context) {
	h.respond(c, h.assignments.RejectOrder)
}

type respondFunc func(ctx context.Context, orderID, restaurantID uuid.UUID, notes string) (*models.Order, error)

func (h *RestaurantHandler) respond(c *gin.Context, fn respondFunc) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req RespondRequest
	if !bindJSON(c, &req, true) {
		return
	}

	order, err := fn(c.Request.Context(), orderID, currentRestaurant(c).ID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *RestaurantHandler) AdvancePreparation(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	restaurant := currentRestaurant(c)

	stages, err := h.preparation.AdvancePreparation(c.Request.Context(), orderID, restaurant.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}
