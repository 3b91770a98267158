package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dispatch-api/pkg/auth"
)

const (
	ContextActorID = "actor_id"
	ContextRole    = "role"
)

// AuthMiddleware verifies bearer tokens minted by the external identity
// service. Session management itself lives outside this service.
type AuthMiddleware struct {
	verifier *auth.Verifier
}

func NewAuthMiddleware(verifier *auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the JWT token and sets actor info in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.abort(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.abort(c, "invalid authorization format")
			return
		}

		claims, err := m.verifier.Verify(parts[1])
		if err != nil {
			m.abort(c, "invalid token")
			return
		}

		c.Set(ContextActorID, claims.ActorID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

func (m *AuthMiddleware) abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: message,
		TraceID: c.GetString(ContextRequestID),
	})
}
