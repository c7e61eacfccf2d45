package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
)

// AuthMiddleware checks the operator bearer token.
type AuthMiddleware struct {
	token string
}

// NewAuthMiddleware creates a new AuthMiddleware. An empty token disables
// authentication.
func NewAuthMiddleware(token string) *AuthMiddleware {
	return &AuthMiddleware{token: strings.TrimSpace(token)}
}

// Enabled reports whether requests must carry the operator token.
func (m *AuthMiddleware) Enabled() bool {
	return m.token != ""
}

// Authenticate returns a gin middleware that validates the Bearer token.
// Event streams opened by a browser cannot set headers, so the token is
// also accepted from the "token" query parameter.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			// Extract Bearer token
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
					Code:    domainerrors.ErrCodeUnauthorized,
					Message: "invalid authorization header format",
				})
				return
			}
			token = strings.TrimSpace(parts[1])
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    domainerrors.ErrCodeUnauthorized,
				Message: "missing operator token",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    domainerrors.ErrCodeUnauthorized,
				Message: "invalid operator token",
			})
			return
		}

		c.Next()
	}
}
