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

type ConsultationHandler struct {
	consultationService *services.ConsultationService
	sessionService      *services.SessionService
}

func NewConsultationHandler(
	consultationService *services.ConsultationService,
	sessionService *services.SessionService,
) *ConsultationHandler {
	return &ConsultationHandler{
		consultationService: consultationService,
		sessionService:      sessionService,
	}
}

func consultationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid consultation id")
		return uuid.Nil, false
	}
	return id, true
}

// Create books a consultation. Clients may only book for themselves.
func (h *ConsultationHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dtos.CreateConsultationRequest
	if !bindJSON(c, &req) {
		return
	}
	if actor.Role == models.UserRoleClient && req.ClientID != actor.UserID.String() {
		response.Forbidden(c, "clients can only book for themselves")
		return
	}

	consultation, err := h.consultationService.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, dtos.ToConsultationResponse(consultation))
}

func (h *ConsultationHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var q dtos.ListConsultationsQuery
	if !bindQuery(c, &q) {
		return
	}

	list, err := h.consultationService.List(c.Request.Context(), actor, &q)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dtos.ToConsultationList(list))
}

func (h *ConsultationHandler) Get(c *gin.Context) {
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
	response.Success(c, dtos.ToConsultationResponse(consultation))
}

func (h *ConsultationHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	var req dtos.UpdateConsultationRequest
	if !bindJSON(c, &req) {
		return
	}

	consultation, err := h.consultationService.UpdateDetails(c.Request.Context(), id, actor, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dtos.ToConsultationResponse(consultation))
}

// UpdateStatus is the generic admin status patch. Every change still goes
// through the status machine and the start window.
func (h *ConsultationHandler) UpdateStatus(c *gin.Context) {
	id, ok := consultationID(c)
	if !ok {
		return
	}

	var req dtos.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	switch models.ConsultationStatus(req.Status) {
	case models.ConsultationStatusOngoing:
		h.AdminStart(c)
	case models.ConsultationStatusCompleted:
		h.AdminComplete(c)
	case models.ConsultationStatusCancelled:
		h.transition(c, id, h.consultationService.Cancel)
	case models.ConsultationStatusNoShow:
		h.transition(c, id, h.consultationService.MarkNoShow)
	default:
		response.Conflict(c, models.ErrInvalidTransition.Error())
	}
}

// AdminStart takes the consultation live and starts its timer
func (h *ConsultationHandler) AdminStart(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.sessionService.StartSession(ctx, id, actor); err != nil {
		writeError(c, err)
		return
	}
	h.respondWith(c, id)
}

func (h *ConsultationHandler) AdminCancel(c *gin.Context) {
	if id, ok := consultationID(c); ok {
		h.transition(c, id, h.consultationService.Cancel)
	}
}

// AdminComplete stops the timer if one is running and completes the consultation
func (h *ConsultationHandler) AdminComplete(c *gin.Context) {
	if id, ok := consultationID(c); ok {
		h.transition(c, id, h.sessionService.CompleteSession)
	}
}

func (h *ConsultationHandler) AdminNoShow(c *gin.Context) {
	if id, ok := consultationID(c); ok {
		h.transition(c, id, h.consultationService.MarkNoShow)
	}
}

func (h *ConsultationHandler) transition(
	c *gin.Context,
	id uuid.UUID,
	fn func(context.Context, uuid.UUID) (*models.Consultation, error),
) {
	consultation, err := fn(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dtos.ToConsultationResponse(consultation))
}

func (h *ConsultationHandler) respondWith(c *gin.Context, id uuid.UUID) {
	consultation, err := h.consultationService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dtos.ToConsultationResponse(consultation))
}
