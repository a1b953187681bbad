package dtos

import (
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
)

type SendMessageRequest struct {
	ClientMsgID string  `json:"client_msg_id" binding:"omitempty,max=64"`
	Message     string  `json:"message" binding:"max=4000"`
	MessageType string  `json:"message_type" binding:"required,message_type"`
	FileURL     *string `json:"file_url" binding:"omitempty,url"`
}

type ListMessagesQuery struct {
	AfterSeq int64 `form:"after_seq" binding:"omitempty,min=0"`
	Limit    int   `form:"limit" binding:"omitempty,min=1,max=200"`
}

type ChatMessageResponse struct {
	ID             uuid.UUID `json:"id"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Seq            int64     `json:"seq"`
	ClientMsgID    *string   `json:"client_msg_id,omitempty"`
	Message        string    `json:"message"`
	MessageType    string    `json:"message_type"`
	FileURL        *string   `json:"file_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToChatMessageResponse maps a stored message. An empty file URL is omitted
// so clients never see a media reference they cannot load.
func ToChatMessageResponse(m *models.ChatMessage) ChatMessageResponse {
	resp := ChatMessageResponse{
		ID:             m.ID,
		ConsultationID: m.ConsultationID,
		SenderID:       m.SenderID,
		Seq:            m.Seq,
		ClientMsgID:    m.ClientMsgID,
		Message:        m.Message,
		MessageType:    string(m.MessageType),
		CreatedAt:      m.CreatedAt,
	}
	if m.HasFile() {
		resp.FileURL = m.FileURL
	}
	return resp
}

func ToChatMessageList(ms []*models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, ToChatMessageResponse(m))
	}
	return out
}
