package api

import (
	"strings"

	"projectlink/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the bearer credential on every request and
// rejects anonymous callers. The resolved user id is stored in the gin
// context for the handlers.
func AuthMiddleware(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		credential := ""
		if strings.HasPrefix(header, "Bearer ") {
			credential = strings.TrimPrefix(header, "Bearer ")
		}

		identity := authenticator.Resolve(c.Request.Context(), credential)
		if !identity.Authenticated {
			c.AbortWithStatusJSON(401, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "A valid bearer token is required",
				},
			})
			return
		}

		c.Set("userID", identity.UserID)
		c.Set("userEmail", identity.Email)
		c.Next()
	}
}
