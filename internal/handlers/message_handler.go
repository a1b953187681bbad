package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
)

type MessageHandler struct {
	chatService *services.ChatService
}

func NewMessageHandler(chatService *services.ChatService) *MessageHandler {
	return &MessageHandler{chatService: chatService}
}

// List returns messages after the given sequence number, oldest first
func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	var q dtos.ListMessagesQuery
	if !bindQuery(c, &q) {
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), id, actor, q.AfterSeq, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dtos.ToChatMessageList(messages))
}

func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := consultationID(c)
	if !ok {
		return
	}

	var req dtos.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chatService.Send(c.Request.Context(), id, actor, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, dtos.ToChatMessageResponse(msg))
}
