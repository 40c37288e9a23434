package handlers

import (
	"net/http"
	"order_dispatch/internal/apperrors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// respondError writes err as {"error": message} with the status matching
// its code. Internal errors are logged and their details withheld.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": apperrors.Message(err)})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// uuidParam parses a path parameter. On failure it writes a 400 and
// returns false.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the request body. An empty body is accepted when
// optional is true.
func bindJSON(c *gin.Context, dest interface{}, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "Invalid request format")
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}

func queryFloat(c *gin.Context, name string, required bool) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			badRequest(c, name+" is required")
			return 0, false
		}
		return 0, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return f, true
}
