package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/middlewares"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
	"github.com/jaiguru/astro-remedy/internal/timer"
	"github.com/jaiguru/astro-remedy/internal/utils"
)

// writeError maps service errors onto HTTP statuses
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrConsultationNotFound),
		errors.Is(err, repositories.ErrSessionNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		response.NotFound(c, err.Error())

	case errors.Is(err, services.ErrForbidden):
		response.Forbidden(c, err.Error())

	case errors.Is(err, services.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())

	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, services.ErrOutsideStartWindow),
		errors.Is(err, repositories.ErrStatusConflict),
		errors.Is(err, services.ErrSessionEnded),
		errors.Is(err, services.ErrSessionNotRunning),
		errors.Is(err, services.ErrChatClosed),
		errors.Is(err, services.ErrNotEditable):
		response.Conflict(c, err.Error())

	case errors.Is(err, models.ErrInvalidDuration),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, timer.ErrInvalidExtend):
		response.BadRequest(c, err.Error())

	default:
		l := logger.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("request failed")
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// bindJSON binds the body and writes a validation error on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	if details := utils.FormatValidationErrors(err); details != nil {
		response.ValidationFailed(c, "invalid request", details)
		return
	}
	response.BadRequest(c, "invalid request body")
}

// currentActor reads the caller stored by the auth middleware
func currentActor(c *gin.Context) (services.Actor, bool) {
	id, username, role, ok := middlewares.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return services.Actor{}, false
	}
	return services.Actor{UserID: id, Username: username, Role: role}, true
}
