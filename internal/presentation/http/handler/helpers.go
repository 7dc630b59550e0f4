package handler

import (
	"math"

	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetUserID returns the authenticated operator's id, or nil when the request
// carries no valid authentication.
func GetUserID(c *gin.Context) *uuid.UUID {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		return nil
	}
	id := p.UserID
	return &id
}

// GetActor builds the service-layer actor from the authenticated context.
// Returns nil when the request carries no valid authentication.
func GetActor(c *gin.Context) *service.Actor {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		return nil
	}
	return &service.Actor{ID: p.UserID, Roles: p.Roles}
}

// toCents converts a decimal currency amount to cents
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
