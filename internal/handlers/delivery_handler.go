package handlers

import (
	"net/http"
	"order_dispatch/internal/services"
	"order_dispatch/pkg/geo"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeliveryHandler struct {
	deliveries services.DeliveryService
}

func NewDeliveryHandler(deliveries services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

type AssignDriverRequest struct {
	OrderID  uuid.UUID `json:"order_id" binding:"required"`
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
}

type DriverActionRequest struct {
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
	Reason   string    `json:"reason"`
}

func (h *DeliveryHandler) AssignDriver(c *gin.Context) {
	var req AssignDriverRequest
	if !bindJSON(c, &req, false) {
		return
	}

	assignment, err := h.deliveries.AssignDriver(c.Request.Context(), req.OrderID, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

func (h *DeliveryHandler) UpdateLocation(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.LocationUpdate
	if !bindJSON(c, &req, false) {
		return
	}
	req.AssignmentID = id

	location, err := h.deliveries.UpdateLocation(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, location)
}

func (h *DeliveryHandler) GetCurrentLocation(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	location, err := h.deliveries.GetCurrentLocation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, location)
}

func (h *DeliveryHandler) GetLocationHistory(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	locations, err := h.deliveries.GetLocationHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

func (h *DeliveryHandler) PickUp(c *gin.Context) {
	id, req, ok := h.driverAction(c)
	if !ok {
		return
	}

	assignment, err := h.deliveries.PickUp(c.Request.Context(), id, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

func (h *DeliveryHandler) Complete(c *gin.Context) {
	id, req, ok := h.driverAction(c)
	if !ok {
		return
	}

	assignment, err := h.deliveries.CompleteDelivery(c.Request.Context(), id, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

func (h *DeliveryHandler) Reject(c *gin.Context) {
	id, req, ok := h.driverAction(c)
	if !ok {
		return
	}

	if err := h.deliveries.RejectDelivery(c.Request.Context(), id, req.DriverID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *DeliveryHandler) driverAction(c *gin.Context) (uuid.UUID, DriverActionRequest, bool) {
	var req DriverActionRequest
	id, ok := uuidParam(c, "id")
	if !ok {
		return id, req, false
	}
	return id, req, bindJSON(c, &req, false)
}

func (h *DeliveryHandler) FindNearby(c *gin.Context) {
	lat, ok := queryFloat(c, "lat", true)
	if !ok {
		return
	}
	lng, ok := queryFloat(c, "lng", true)
	if !ok {
		return
	}
	radius, ok := queryFloat(c, "radius_km", false)
	if !ok {
		return
	}

	candidates, err := h.deliveries.FindNearbyOrders(c.Request.Context(), geo.Point{Latitude: lat, Longitude: lng}, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": candidates})
}
