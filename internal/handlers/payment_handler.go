package handlers

import (
	"net/http"
	"order_dispatch/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	payments services.PaymentService
}

func NewPaymentHandler(payments services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type ConfirmPaymentRequest struct {
	ConfirmedBy uuid.UUID `json:"confirmed_by" binding:"required"`
	Method      string    `json:"method"`
}

func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req services.PaymentRequest
	if !bindJSON(c, &req, false) {
		return
	}

	id, err := h.payments.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction_id": id})
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if !bindJSON(c, &req, false) {
		return
	}

	confirmed, err := h.payments.ConfirmPayment(c.Request.Context(), id, req.ConfirmedBy, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": confirmed})
}

func (h *PaymentHandler) ProcessTip(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.TipRequest
	if !bindJSON(c, &req, false) {
		return
	}
	req.OrderID = orderID

	id, err := h.payments.ProcessTip(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tip_id": id})
}

func (h *PaymentHandler) GetOverview(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	overview, err := h.payments.GetPaymentOverview(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
