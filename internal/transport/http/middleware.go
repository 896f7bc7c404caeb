package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing the caller identity.
	ContextKeyUserID = "user_id"
	// ContextKeyFullName is the context key for the caller display name.
	ContextKeyFullName = "full_name"
)

// AuthMiddleware validates bearer tokens and stores the identity on the
// request context.
func AuthMiddleware(jwtCfg *auth.JWTConfig, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromRequest(jwtCfg, c)
		if err != nil {
			logger.Debug().Err(err).Msg("rejected unauthenticated request")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or missing token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyFullName, claims.FullName)
		c.Next()
	}
}

// claimsFromRequest accepts the token either as a bearer header or, for
// WebSocket handshakes where headers are awkward for browser clients,
// as a "token" query parameter.
func claimsFromRequest(jwtCfg *auth.JWTConfig, c *gin.Context) (*auth.Claims, error) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	return auth.ValidateToken(jwtCfg, token)
}

// LoggerMiddleware logs HTTP requests after they complete.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// ErrorResponse is the JSON error body for REST endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
