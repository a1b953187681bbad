package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jaiguru/astro-remedy/internal/handlers"
	"github.com/jaiguru/astro-remedy/internal/middlewares"
	"github.com/jaiguru/astro-remedy/internal/models"
)

func RegisterProtectedEndpoints(
	router *gin.Engine,
	consultationHandler *handlers.ConsultationHandler,
	sessionHandler *handlers.SessionHandler,
	messageHandler *handlers.MessageHandler,
	jwtSecret string,
) {
	protected := router.Group("/api")
	protected.Use(middlewares.AuthMiddleware(jwtSecret))

	protected.GET("/consultations", consultationHandler.List)
	protected.POST("/consultations", consultationHandler.Create)
	protected.GET("/consultations/:id", consultationHandler.Get)
	protected.PUT("/consultations/:id", consultationHandler.Update)

	protected.POST("/consultations/:id/session/start", sessionHandler.Start)
	protected.POST("/consultations/:id/session/pause", sessionHandler.Pause)
	protected.POST("/consultations/:id/session/resume", sessionHandler.Resume)
	protected.POST("/consultations/:id/session/extend", sessionHandler.Extend)
	protected.GET("/consultations/:id/session", sessionHandler.State)
	protected.GET("/consultations/:id/surface", sessionHandler.Surface)

	protected.GET("/consultations/:id/messages", messageHandler.List)
	protected.POST("/consultations/:id/messages", messageHandler.Send)

	admin := protected.Group("")
	admin.Use(middlewares.RequireRole(models.UserRoleAdmin))

	admin.PATCH("/consultations/:id/status", consultationHandler.UpdateStatus)
	admin.POST("/admin/consultations/:id/start", consultationHandler.AdminStart)
	admin.POST("/admin/consultations/:id/cancel", consultationHandler.AdminCancel)
	admin.POST("/admin/consultations/:id/complete", consultationHandler.AdminComplete)
	admin.POST("/admin/consultations/:id/no-show", consultationHandler.AdminNoShow)
}
