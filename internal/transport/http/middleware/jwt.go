package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/pkg/jwtutil"
	"docrag/internal/transport/http/response"
)

const ContextOwnerIDKey = "owner_id"

// OptionalAuthJWT sets the owner id from a valid bearer token. Requests
// without an Authorization header stay anonymous; a header that does not
// verify is rejected. An empty secret turns verification off.
func OptionalAuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || secret == "" {
			c.Next()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextOwnerIDKey, claims.Owner())
		c.Next()
	}
}

// OwnerID returns the owner set by OptionalAuthJWT, or "" when anonymous.
func OwnerID(c *gin.Context) string {
	return c.GetString(ContextOwnerIDKey)
}
