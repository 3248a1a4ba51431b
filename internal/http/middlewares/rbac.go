package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (m *AuthMiddleware) RequireRole(required string) gin.HandlerFunc {
	return m.RequireAnyRole(required)
}

// RequireAnyRole must run after RequireAuth. No identity is 401; an identity
// outside the accepted roles is 403.
func (m *AuthMiddleware) RequireAnyRole(roles ...string) gin.HandlerFunc {
	accepted := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		accepted[r] = struct{}{}
	}
	message := "Requires role: " + strings.Join(roles, " or ")

	return func(c *gin.Context) {
		id, ok := IdentityFromContext(c)

		if !ok || id.Role == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}
		if _, ok := accepted[id.Role]; !ok {
			abortError(c, http.StatusForbidden, "forbidden", message)
			return
		}
		c.Next()
	}
}
