package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dtos.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}
