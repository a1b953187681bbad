package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/middlewares"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
	ws "github.com/jaiguru/astro-remedy/internal/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 10
	handlerTimeout = 5 * time.Second
)

type WebSocketHandler struct {
	sessionService *services.SessionService
	chatService    *services.ChatService
	hub            *ws.Hub
	upgrader       websocket.Upgrader
}

func NewWebSocketHandler(
	sessionService *services.SessionService,
	chatService *services.ChatService,
	hub *ws.Hub,
	allowedOrigins []string,
) *WebSocketHandler {
	return &WebSocketHandler{
		sessionService: sessionService,
		chatService:    chatService,
		hub:            hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// connection bundles what the pumps need for one socket
type connection struct {
	client *ws.Client
	auth   *middlewares.WebSocketAuthContext
	actor  services.Actor
	log    zerolog.Logger
}

// HandleWebSocket is the WebSocket endpoint handler
// MUST be protected by WebSocketAuthMiddleware
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	auth, err := middlewares.GetWebSocketAuth(c)
	if err != nil {
		response.InternalError(c, "internal server error")
		return
	}
	l := logger.Ctx(c.Request.Context())

	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(auth.ConsultationID, auth.Role, auth.UserID, auth.DisplayName, conn, afterSeq)
	session := h.hub.AddClient(auth.ConsultationID, client)

	cc := &connection{
		client: client,
		auth:   auth,
		actor:  actorFor(auth),
		log:    l.With().Str("client_id", client.ID.String()).Logger(),
	}
	cc.log.Info().Msg("participant connected")

	go h.writePump(cc)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	if err := h.sessionService.HandleClientJoined(ctx, auth.Consultation, auth.Role, auth.DisplayName); err != nil {
		cc.log.Error().Err(err).Msg("record join")
	}
	cancel()

	h.sendSessionReady(session, cc)
	h.replay(cc, afterSeq)

	go h.readPump(cc)
}

func actorFor(auth *middlewares.WebSocketAuthContext) services.Actor {
	role := models.UserRole(auth.Role)
	if auth.Role == models.ParticipantObserver {
		role = models.UserRoleAdmin
	}
	return services.Actor{UserID: auth.UserID, Username: auth.Username, Role: role}
}

// sendSessionReady tells both parties once they are connected
func (h *WebSocketHandler) sendSessionReady(session *ws.Session, cc *connection) {
	if cc.auth.Role == models.ParticipantObserver || !session.BothJoined() {
		return
	}

	other := session.GetOtherClient(cc.auth.Role)
	if other == nil {
		return
	}

	for _, pair := range [][2]*ws.Client{{cc.client, other}, {other, cc.client}} {
		to, peer := pair[0], pair[1]
		if to.ConnectionState.HasSessionReadySent() {
			continue
		}
		data, err := ws.Encode(ws.MsgTypeSessionReady, ws.SessionReadyPayload{
			ConsultationID: cc.auth.ConsultationID.String(),
			OtherPartyName: peer.Username,
			Role:           to.Role,
		})
		if err != nil {
			continue
		}
		if err := to.Deliver(ws.Frame{Data: data}); err == nil {
			to.ConnectionState.SetSessionReadySent(true)
		}
	}
}

// replay sends stored messages after afterSeq. Frames the connection has
// already received are dropped by its delivery state.
func (h *WebSocketHandler) replay(cc *connection, afterSeq int64) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	for {
		messages, err := h.chatService.History(ctx, cc.auth.ConsultationID, cc.actor, afterSeq, 200)
		if err != nil {
			cc.log.Error().Err(err).Msg("replay history")
			h.sendError(cc.client, "history_unavailable", "could not load message history")
			return
		}

		for _, m := range messages {
			h.deliverMessage(cc.client, m)
			afterSeq = m.Seq
		}
		if len(messages) < 200 {
			return
		}
	}
}

func (h *WebSocketHandler) deliverMessage(client *ws.Client, m *models.ChatMessage) {
	data, err := ws.Encode(ws.MsgTypeChatMessage, dtos.ToChatMessageResponse(m))
	if err != nil {
		return
	}
	client.Deliver(ws.Frame{Data: data, Seq: m.Seq})
}

func (h *WebSocketHandler) sendError(client *ws.Client, code, message string) {
	data, err := ws.Encode(ws.MsgTypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	client.Deliver(ws.Frame{Data: data})
}

// readPump reads frames until the socket closes or the participant leaves
func (h *WebSocketHandler) readPump(cc *connection) {
	client := cc.client
	defer func() {
		if h.hub.RemoveClient(client.ConsultationID, client.Role, client.ID) {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			if err := h.sessionService.HandleClientLeft(ctx, client.ConsultationID, client.Role, client.Username); err != nil {
				cc.log.Error().Err(err).Msg("record leave")
			}
			cancel()
		}
		client.Close()
		cc.log.Info().Msg("participant disconnected")
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				cc.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		// Malformed frames are reported, the connection stays up
		var msg ws.WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, "bad_frame", "frame is not a valid envelope")
			continue
		}

		switch msg.Type {
		case ws.MsgTypeChatMessage:
			h.handleChatMessage(cc, msg.Payload)

		case ws.MsgTypeSync:
			var p ws.SyncPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				h.sendError(client, "bad_payload", "sync needs after_seq")
				continue
			}
			h.replay(cc, p.AfterSeq)

		case ws.MsgTypePing:
			if data, err := ws.Encode(ws.MsgTypePong, struct{}{}); err == nil {
				client.Deliver(ws.Frame{Data: data})
			}

		case ws.MsgTypeLeave:
			return

		default:
			h.sendError(client, "unknown_type", "unknown message type "+strconv.Quote(msg.Type))
		}
	}
}

func (h *WebSocketHandler) handleChatMessage(cc *connection, payload json.RawMessage) {
	var p ws.ChatMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(cc.client, "bad_payload", "invalid chat message")
		return
	}
	if p.MessageType == "" {
		p.MessageType = string(models.MessageTypeText)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	stored, err := h.chatService.Send(ctx, cc.auth.ConsultationID, cc.actor, &dtos.SendMessageRequest{
		ClientMsgID: p.ClientMsgID,
		Message:     p.Message,
		MessageType: p.MessageType,
		FileURL:     p.FileURL,
	})
	if err != nil {
		code := "send_failed"
		switch {
		case errors.Is(err, services.ErrChatClosed):
			code = "chat_closed"
		case errors.Is(err, services.ErrForbidden):
			code = "forbidden"
		case errors.Is(err, services.ErrEmptyMessage):
			code = "empty_message"
		default:
			cc.log.Error().Err(err).Msg("send chat message")
		}
		h.sendError(cc.client, code, err.Error())
		return
	}

	// The relay echo carries the same seq and is dropped on arrival
	h.deliverMessage(cc.client, stored)
}

// writePump writes queued frames and keeps the connection alive
func (h *WebSocketHandler) writePump(cc *connection) {
	client := cc.client
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case data := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cc.log.Warn().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.Done:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
