package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/middleware"
	"github.com/tas-project/tas-api/internal/models"
)

// currentClaims returns the authenticated user's claims, or nil on
// unauthenticated routes.
func currentClaims(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
