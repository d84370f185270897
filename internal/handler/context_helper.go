package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/middleware"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	"github.com/risky-biz/harmoni-hse-360-sub005/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the acting principal plus request metadata for
// audit trails. The bool is false when the request carries no valid claims.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims, c.ClientIP(), c.Request.UserAgent()), true
}
