package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/session"
	"github.com/aura-webinar/portal/pkg/response"
)

// RequireAuth rejects anonymous API calls with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Current(c).IsAuthenticated() {
			response.Unauthorized(c, "Please sign in to continue.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		s := session.Current(c)
		if !s.IsAuthenticated() {
			response.Unauthorized(c, "Please sign in to continue.")
			c.Abort()
			return
		}
		if _, ok := allowed[s.Role()]; !ok {
			response.Forbidden(c, "You do not have access to this page.")
			c.Abort()
			return
		}
		c.Next()
	}
}
