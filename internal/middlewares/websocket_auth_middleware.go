package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
	"github.com/jaiguru/astro-remedy/internal/utils"
)

// WebSocketAuthContext holds authenticated WebSocket connection data
type WebSocketAuthContext struct {
	UserID         uuid.UUID
	Username       string
	DisplayName    string
	ConsultationID uuid.UUID
	Role           string // "astrologer", "client" or "observer"
	Consultation   *models.Consultation
}

type wsAuthKey struct{}

// WebSocketAuthMiddleware authenticates WebSocket connections before the
// upgrade. The role is derived from consultation ownership, never taken
// from the client. Admins who are not participants join as observers.
func WebSocketAuthMiddleware(
	jwtSecret string,
	consultations *services.ConsultationService,
	users services.UserStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		l := logger.Ctx(ctx)

		// Browsers cannot set headers on a WebSocket handshake
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			response.Unauthorized(c, "authentication required")
			return
		}

		claims, err := utils.ParseAccessToken(token, jwtSecret)
		if err != nil {
			l.Warn().Err(err).Msg("websocket token rejected")
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		consultationID, err := uuid.Parse(c.Query("consultation_id"))
		if err != nil {
			response.BadRequest(c, "valid consultation_id required")
			return
		}

		consultation, err := consultations.Get(ctx, consultationID)
		if errors.Is(err, repositories.ErrConsultationNotFound) {
			response.NotFound(c, "consultation not found")
			return
		}
		if err != nil {
			l.Error().Err(err).Str(logger.FieldConsultationID, consultationID.String()).Msg("load consultation")
			response.InternalError(c, "failed to load consultation")
			return
		}

		role := consultation.ParticipantRole(claims.UserID)
		if role == "" {
			if models.UserRole(claims.Role) != models.UserRoleAdmin {
				response.Forbidden(c, "not authorized for this consultation")
				return
			}
			role = models.ParticipantObserver
		}

		// Load the name from the database, never from the client
		user, err := users.FindByID(ctx, claims.UserID)
		if err != nil {
			l.Error().Err(err).Str(logger.FieldUserID, claims.UserID.String()).Msg("load websocket user")
			response.Unauthorized(c, "user not found")
			return
		}

		authCtx := &WebSocketAuthContext{
			UserID:         user.ID,
			Username:       user.Username,
			DisplayName:    user.Name(),
			ConsultationID: consultationID,
			Role:           role,
			Consultation:   consultation,
		}

		l = l.With().
			Str(logger.FieldUserID, user.ID.String()).
			Str(logger.FieldRole, role).
			Str(logger.FieldConsultationID, consultationID.String()).
			Logger()
		ctx = context.WithValue(ctx, wsAuthKey{}, authCtx)
		c.Request = c.Request.WithContext(logger.WithLogger(ctx, l))
		c.Set(ContextUserID, user.ID.String())

		c.Next()
	}
}

// GetWebSocketAuth retrieves authentication context from request
func GetWebSocketAuth(c *gin.Context) (*WebSocketAuthContext, error) {
	auth, ok := c.Request.Context().Value(wsAuthKey{}).(*WebSocketAuthContext)
	if !ok || auth == nil {
		return nil, errors.New("websocket authentication context not found")
	}
	return auth, nil
}
