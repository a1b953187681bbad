package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
)

type SessionHandler struct {
	consultationService *services.ConsultationService
	sessionService      *services.SessionService
	surfaceComposer     *services.SurfaceComposer
}

func NewSessionHandler(
	consultationService *services.ConsultationService,
	sessionService *services.SessionService,
	surfaceComposer *services.SurfaceComposer,
) *SessionHandler {
	return &SessionHandler{
		consultationService: consultationService,
		sessionService:      sessionService,
		surfaceComposer:     surfaceComposer,
	}
}

type sessionOp func(ctx context.Context, id uuid.UUID, actor services.Actor) (*dtos.SessionStateResponse, error)

func (h *SessionHandler) run(c *gin.Context, op sessionOp) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	state, err := op(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *SessionHandler) Start(c *gin.Context)  { h.run(c, h.sessionService.StartSession) }
func (h *SessionHandler) Pause(c *gin.Context)  { h.run(c, h.sessionService.Pause) }
func (h *SessionHandler) Resume(c *gin.Context) { h.run(c, h.sessionService.Resume) }
func (h *SessionHandler) State(c *gin.Context)  { h.run(c, h.sessionService.State) }

func (h *SessionHandler) Extend(c *gin.Context) {
	var req dtos.ExtendSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, id uuid.UUID, actor services.Actor) (*dtos.SessionStateResponse, error) {
		return h.sessionService.Extend(ctx, id, actor, req.Minutes)
	})
}

// Surface tells the caller which chat and video surfaces to mount
func (h *SessionHandler) Surface(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	consultation, err := h.consultationService.GetForActor(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	in := services.SurfaceInput{
		Type:     consultation.Type,
		Status:   consultation.Status,
		IsActive: consultation.Status == models.ConsultationStatusOngoing,
	}
	response.Success(c, h.surfaceComposer.Compose(consultation, in, actor.Username))
}
