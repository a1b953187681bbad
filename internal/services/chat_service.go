package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/relay"
	"github.com/jaiguru/astro-remedy/internal/websocket"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type ChatService struct {
	consultations *ConsultationService
	messages      MessageStore
	publisher     relay.Publisher
}

func NewChatService(consultations *ConsultationService, messages MessageStore, publisher relay.Publisher) *ChatService {
	return &ChatService{
		consultations: consultations,
		messages:      messages,
		publisher:     publisher,
	}
}

// ChatOpen reports whether participants may still post. Chat consultations
// accept messages until they close; other types only while live.
func ChatOpen(c *models.Consultation) bool {
	if c.Status.IsTerminal() {
		return false
	}
	return c.Type == models.ConsultationTypeChat || c.Status == models.ConsultationStatusOngoing
}

// Send stores a message under the next sequence number and relays it to
// both participants. Resending the same client_msg_id returns the stored
// message without relaying it again.
func (s *ChatService) Send(ctx context.Context, consultationID uuid.UUID, actor Actor, req *dtos.SendMessageRequest) (*models.ChatMessage, error) {
	c, err := s.consultations.GetForActor(ctx, consultationID, actor)
	if err != nil {
		return nil, err
	}
	if c.ParticipantRole(actor.UserID) == "" {
		return nil, ErrForbidden
	}
	if !ChatOpen(c) {
		return nil, ErrChatClosed
	}

	msgType := models.MessageType(req.MessageType)
	if !msgType.Valid() {
		return nil, fmt.Errorf("invalid message type %q", req.MessageType)
	}

	msg := &models.ChatMessage{
		ID:             uuid.New(),
		ConsultationID: consultationID,
		SenderID:       actor.UserID,
		Message:        strings.TrimSpace(req.Message),
		MessageType:    msgType,
		FileURL:        req.FileURL,
	}
	if req.ClientMsgID != "" {
		id := req.ClientMsgID
		msg.ClientMsgID = &id
	}

	// Media without a file URL is kept as-is; text must say something
	if msg.Message == "" && !msg.HasFile() && !msgType.IsMedia() {
		return nil, ErrEmptyMessage
	}

	stored, created, err := s.messages.Append(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if !created {
		return stored, nil
	}

	publishEvent(ctx, s.publisher, websocket.MsgTypeChatMessage, consultationID, "", stored.Seq,
		dtos.ToChatMessageResponse(stored))

	l := logger.Ctx(ctx)
	l.Debug().
		Str(logger.FieldConsultationID, consultationID.String()).
		Int64("seq", stored.Seq).
		Str("message_type", string(stored.MessageType)).
		Msg("chat message stored")
	return stored, nil
}

// History returns messages with seq > afterSeq in ascending order
func (s *ChatService) History(ctx context.Context, consultationID uuid.UUID, actor Actor, afterSeq int64, limit int) ([]*models.ChatMessage, error) {
	if _, err := s.consultations.GetForActor(ctx, consultationID, actor); err != nil {
		return nil, err
	}

	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messages.ListAfter(ctx, consultationID, afterSeq, limit)
}
