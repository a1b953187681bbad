package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/relay"
)

const (
	sendQueueSize     = 256
	pendingBufferSize = 100
)

// Client is one participant connection
type Client struct {
	ID             uuid.UUID
	ConsultationID uuid.UUID
	Role           string // "astrologer", "client" or "observer", derived from ownership
	UserID         uuid.UUID
	Username       string
	Conn           *websocket.Conn
	Send           chan []byte
	Done           chan struct{}
	// ConnectionState tracks delivered chat sequence numbers
	ConnectionState *ConnectionState

	closeOnce sync.Once
}

func NewClient(consultationID uuid.UUID, role string, userID uuid.UUID, username string, conn *websocket.Conn, afterSeq int64) *Client {
	return &Client{
		ID:              uuid.New(),
		ConsultationID:  consultationID,
		Role:            role,
		UserID:          userID,
		Username:        username,
		Conn:            conn,
		Send:            make(chan []byte, sendQueueSize),
		Done:            make(chan struct{}),
		ConnectionState: NewConnectionState(afterSeq),
	}
}

// Deliver queues a frame unless its seq was already delivered. It never blocks.
func (c *Client) Deliver(f Frame) error {
	if !c.IsConnected() {
		return ErrClientClosed
	}
	if !c.ConnectionState.MarkDelivered(f.Seq) {
		return nil
	}

	select {
	case c.Send <- f.Data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close ends the connection; safe to call more than once
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

func (c *Client) IsConnected() bool {
	select {
	case <-c.Done:
		return false
	default:
		return true
	}
}

// Session groups the connections of one consultation on this instance
type Session struct {
	ConsultationID uuid.UUID
	Astrologer     *Client
	Client         *Client

	observers map[uuid.UUID]*Client     // admins watching the session
	pending   map[string]*MessageBuffer // role -> frames awaiting connection
	mu        sync.RWMutex
}

func NewSession(consultationID uuid.UUID) *Session {
	return &Session{
		ConsultationID: consultationID,
		observers:      make(map[uuid.UUID]*Client),
		pending: map[string]*MessageBuffer{
			models.ParticipantAstrologer: NewMessageBuffer(pendingBufferSize),
			models.ParticipantClient:     NewMessageBuffer(pendingBufferSize),
		},
	}
}

func (s *Session) BothJoined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Astrologer != nil && s.Client != nil
}

func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Astrologer == nil && s.Client == nil && len(s.observers) == 0
}

// GetClient returns the connection holding role
func (s *Session) GetClient(role string) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role == models.ParticipantAstrologer {
		return s.Astrologer
	}
	return s.Client
}

// GetOtherClient returns the counterpart of role
func (s *Session) GetOtherClient(role string) *Client {
	if role == models.ParticipantAstrologer {
		return s.GetClient(models.ParticipantClient)
	}
	return s.GetClient(models.ParticipantAstrologer)
}

// SendToRole delivers to role, buffering while that role is not connected
func (s *Session) SendToRole(role string, f Frame) {
	client := s.GetClient(role)
	if client != nil && client.IsConnected() {
		if err := client.Deliver(f); err != nil {
			l := logger.L()
			l.Warn().Err(err).
				Str(logger.FieldConsultationID, s.ConsultationID.String()).
				Str(logger.FieldRole, role).
				Msg("dropping frame")
		}
		return
	}

	if buf, ok := s.pending[role]; ok {
		buf.Add(f)
	}
}

// Broadcast sends f to both parties and every observer
func (s *Session) Broadcast(f Frame) {
	s.SendToRole(models.ParticipantAstrologer, f)
	s.SendToRole(models.ParticipantClient, f)

	s.mu.RLock()
	observers := make([]*Client, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.RUnlock()

	for _, o := range observers {
		o.Deliver(f)
	}
}

func (s *Session) attach(c *Client) (replaced *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Role == models.ParticipantObserver {
		s.observers[c.ID] = c
		return nil
	}
	if c.Role == models.ParticipantAstrologer {
		replaced, s.Astrologer = s.Astrologer, c
	} else {
		replaced, s.Client = s.Client, c
	}
	if replaced != nil && replaced.ID == c.ID {
		replaced = nil
	}
	return replaced
}

func (s *Session) detach(role string, clientID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case role == models.ParticipantObserver:
		if _, ok := s.observers[clientID]; !ok {
			return false
		}
		delete(s.observers, clientID)
	case role == models.ParticipantAstrologer && s.Astrologer != nil && s.Astrologer.ID == clientID:
		s.Astrologer = nil
	case role == models.ParticipantClient && s.Client != nil && s.Client.ID == clientID:
		s.Client = nil
	default:
		return false
	}
	return true
}

// Close disconnects everyone in the session
func (s *Session) Close() {
	s.mu.RLock()
	clients := []*Client{s.Astrologer, s.Client}
	for _, o := range s.observers {
		clients = append(clients, o)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if c != nil {
			c.Close()
		}
	}
}

// Hub holds the live consultation sessions of this instance
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session // key: consultation_id
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[uuid.UUID]*Session)}
}

// AddClient attaches a connection, closing an older one of the same role,
// and flushes frames buffered for that role.
func (h *Hub) AddClient(consultationID uuid.UUID, client *Client) *Session {
	h.mu.Lock()
	session, exists := h.sessions[consultationID]
	if !exists {
		session = NewSession(consultationID)
		h.sessions[consultationID] = session
	}
	h.mu.Unlock()

	if old := session.attach(client); old != nil {
		l := logger.L()
		l.Info().
			Str(logger.FieldConsultationID, consultationID.String()).
			Str(logger.FieldRole, client.Role).
			Msg("closing duplicate connection")
		old.Close()
	}

	if buf, ok := session.pending[client.Role]; ok {
		for _, f := range buf.Flush() {
			client.Deliver(f)
		}
	}
	return session
}

func (h *Hub) GetSession(consultationID uuid.UUID) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[consultationID]
}

// RemoveClient detaches the given connection. A newer connection that
// replaced it is left in place. Empty sessions are dropped.
func (h *Hub) RemoveClient(consultationID uuid.UUID, role string, clientID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, exists := h.sessions[consultationID]
	if !exists {
		return false
	}

	removed := session.detach(role, clientID)
	if session.IsEmpty() {
		delete(h.sessions, consultationID)
	}
	return removed
}

// Dispatch delivers a relay event to the local participants it targets.
// Events for consultations with no local connection are ignored.
func (h *Hub) Dispatch(event *relay.Event) {
	id, err := uuid.Parse(event.ConsultationID)
	if err != nil {
		return
	}
	session := h.GetSession(id)
	if session == nil {
		return
	}

	data, err := encodeRaw(event.Type, event.Payload)
	if err != nil {
		return
	}
	f := Frame{Data: data, Seq: event.Seq}

	if event.TargetRole != "" {
		session.SendToRole(event.TargetRole, f)
		return
	}
	session.Broadcast(f)
}

// Run feeds relay events into Dispatch until ctx is done or the
// subscription closes.
func (h *Hub) Run(ctx context.Context, sub relay.Subscriber) error {
	events, err := sub.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.Dispatch(ev)
		}
	}
}

// CloseAll disconnects every session on this instance
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[uuid.UUID]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func encodeRaw(msgType string, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return json.Marshal(WebSocketMessage{Type: msgType, Payload: payload})
}
