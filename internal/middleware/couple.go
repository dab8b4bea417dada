package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/daeli/backend/internal/auth"
	"github.com/daeli/backend/pkg/response"
)

// RequireCouple rejects requests whose context carries no partner or couple.
func RequireCouple() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.PartnerID(c) == "" || auth.CoupleToken(c) == "" {
			response.Unauthorized(c, "missing partner context")
			c.Abort()
			return
		}
		c.Next()
	}
}
