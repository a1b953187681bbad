package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jaiguru/astro-remedy/internal/handlers"
	"github.com/jaiguru/astro-remedy/internal/middlewares"
	"github.com/jaiguru/astro-remedy/internal/services"
)

func RegisterPublicEndpoints(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	webSocketHandler *handlers.WebSocketHandler,
	consultationService *services.ConsultationService,
	userStore services.UserStore,
	jwtSecret string,
) {
	router.GET("/healthz", healthHandler.Health)

	public := router.Group("/api")

	public.POST("/auth/login", authHandler.Login)

	// WebSocket endpoint; the token travels in the query string
	wsAuth := middlewares.WebSocketAuthMiddleware(jwtSecret, consultationService, userStore)
	public.GET("/ws/consultation", wsAuth, webSocketHandler.HandleWebSocket)
}
