package handlers

import (
	"net/http"
	"order_dispatch/internal/models"
	"order_dispatch/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orders      services.OrderService
	status      services.StatusService
	dispatcher  services.DispatchService
	preparation services.PreparationService
}

func NewOrderHandler(
	orders services.OrderService,
	status services.StatusService,
	dispatcher services.DispatchService,
	preparation services.PreparationService,
) *OrderHandler {
	return &OrderHandler{
		orders:      orders,
		status:      status,
		dispatcher:  dispatcher,
		preparation: preparation,
	}
}

type UpdateStatusRequest struct {
	Status        models.OrderStatus     `json:"status" binding:"required"`
	ChangedBy     *uuid.UUID             `json:"changed_by"`
	ChangedByType string                 `json:"changed_by_type"`
	Notes         string                 `json:"notes"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type CancelOrderRequest struct {
	ChangedBy     *uuid.UUID `json:"changed_by"`
	ChangedByType string     `json:"changed_by_type"`
	Reason        string     `json:"reason"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if !bindJSON(c, &req, false) {
		return
	}

	result, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	details, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *OrderHandler) GetHistory(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	history, err := h.status.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req, false) {
		return
	}

	order, err := h.status.UpdateStatus(c.Request.Context(), services.StatusUpdate{
		OrderID:       id,
		Status:        req.Status,
		ChangedBy:     req.ChangedBy,
		ChangedByType: req.ChangedByType,
		Notes:         req.Notes,
		Metadata:      req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if !bindJSON(c, &req, true) {
		return
	}

	order, err := h.status.CancelOrder(c.Request.Context(), id, req.ChangedBy, req.ChangedByType, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Redispatch(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) GetPreparation(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	stages, err := h.preparation.GetStages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

func (h *OrderHandler) ListCustomerOrders(c *gin.Context) {
	customerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	orders, err := h.orders.ListCustomerOrders(c.Request.Context(), customerID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
