package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID   = logger.FieldUserID
	ContextUsername = "username"
	ContextRole     = logger.FieldRole
)

// AuthMiddleware validates the Bearer access token and stores the caller
// in the gin context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "authentication required")
			return
		}

		claims, err := utils.ParseAccessToken(token, jwtSecret)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID.String())
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)

		l := logger.Ctx(c.Request.Context()).With().
			Str(logger.FieldUserID, claims.UserID.String()).
			Str(logger.FieldRole, claims.Role).
			Logger()
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), l))

		c.Next()
	}
}

// RequireRole lets only the given account roles through
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.UserRole(c.GetString(ContextRole))
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient role")
	}
}

// CurrentUser returns the caller stored by AuthMiddleware
func CurrentUser(c *gin.Context) (uuid.UUID, string, models.UserRole, bool) {
	id, err := uuid.Parse(c.GetString(ContextUserID))
	if err != nil {
		return uuid.Nil, "", "", false
	}
	return id, c.GetString(ContextUsername), models.UserRole(c.GetString(ContextRole)), true
}
