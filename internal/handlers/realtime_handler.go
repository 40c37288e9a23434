package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderStream upgrades a request into a websocket subscribed to one order.
type OrderStream interface {
	ServeOrder(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) error
}

type RealtimeHandler struct {
	stream OrderStream
}

func NewRealtimeHandler(stream OrderStream) *RealtimeHandler {
	return &RealtimeHandler{stream: stream}
}

func (h *RealtimeHandler) ServeOrder(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// the upgrader has already written an error response on failure
	if err := h.stream.ServeOrder(c.Writer, c.Request, orderID); err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Str("order_id", orderID.String()).Msg("websocket upgrade failed")
	}
}
