package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeVoice MessageType = "voice"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeVoice:
		return true
	}
	return false
}

// IsMedia reports whether the message is expected to carry a file URL
func (t MessageType) IsMedia() bool {
	return t == MessageTypeImage || t == MessageTypeVideo || t == MessageTypeVoice
}

type ChatMessage struct {
	ID             uuid.UUID `db:"id"`
	ConsultationID uuid.UUID `db:"consultation_id"`
	SenderID       uuid.UUID `db:"sender_id"`

	// Seq is assigned by the server and is strictly increasing per consultation
	Seq         int64       `db:"seq"`
	ClientMsgID *string     `db:"client_msg_id"`
	Message     string      `db:"message"`
	MessageType MessageType `db:"message_type"`
	FileURL     *string     `db:"file_url"`

	CreatedAt time.Time `db:"created_at"`
}

// HasFile reports whether a non-empty file URL is attached
func (m *ChatMessage) HasFile() bool {
	return m.FileURL != nil && *m.FileURL != ""
}
