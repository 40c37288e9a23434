package handlers

import (
	"net/http"
	"order_dispatch/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications services.NotificationService
}

func NewNotificationHandler(notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns a recipient's notifications, newest first. ?unread=true
// filters out read ones.
func (h *NotificationHandler) List(c *gin.Context) {
	recipientID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	notifications, err := h.notifications.ListNotifications(c.Request.Context(), recipientID, c.Query("unread") == "true", limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkAsRead(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	recipientID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllAsRead(c.Request.Context(), recipientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
