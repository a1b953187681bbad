package websocket

import (
	"encoding/json"
	"sort"
	"sync"
)

// Client -> server message types
const (
	MsgTypeChatMessage = "chat_message"
	MsgTypeSync        = "sync"
	MsgTypePing        = "ping"
	MsgTypeLeave       = "leave"
)

// Server -> client message types
const (
	MsgTypeSessionReady      = "session_ready"
	MsgTypeTimerState        = "timer_state"
	MsgTypeTimerWarning      = "timer_warning"
	MsgTypeSessionEnded      = "session_ended"
	MsgTypeParticipantJoined = "participant_joined"
	MsgTypeParticipantLeft   = "participant_left"
	MsgTypeError             = "error"
	MsgTypePong              = "pong"
)

// WebSocketMessage is the envelope of every frame in both directions
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionReadyPayload is sent when both participants are connected
type SessionReadyPayload struct {
	ConsultationID string `json:"consultation_id"`
	OtherPartyName string `json:"other_party_name"`
	Role           string `json:"role"`
}

// ChatMessagePayload is what a participant sends to post a message
type ChatMessagePayload struct {
	ClientMsgID string  `json:"client_msg_id"`
	Message     string  `json:"message"`
	MessageType string  `json:"message_type"`
	FileURL     *string `json:"file_url,omitempty"`
}

// SyncPayload asks for every message after the given sequence number
type SyncPayload struct {
	AfterSeq int64 `json:"after_seq"`
}

type ParticipantPayload struct {
	ConsultationID string `json:"consultation_id"`
	Role           string `json:"role"`
	Name           string `json:"name"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode marshals an envelope with the given payload
func Encode(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebSocketMessage{Type: msgType, Payload: data})
}

// Frame is an encoded envelope queued for one role. Seq is non-zero for chat
// messages and is used to drop duplicates.
type Frame struct {
	Data []byte
	Seq  int64
}

// MessageBuffer holds frames for a participant that has not connected yet
type MessageBuffer struct {
	mu      sync.Mutex
	frames  []Frame
	maxSize int
}

func NewMessageBuffer(maxSize int) *MessageBuffer {
	return &MessageBuffer{
		frames:  make([]Frame, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends a frame. Returns ErrMessageBufferFull once maxSize is reached.
func (mb *MessageBuffer) Add(f Frame) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if len(mb.frames) >= mb.maxSize {
		return ErrMessageBufferFull
	}
	mb.frames = append(mb.frames, f)
	return nil
}

// Flush returns all buffered frames and clears the buffer
func (mb *MessageBuffer) Flush() []Frame {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	frames := mb.frames
	mb.frames = make([]Frame, 0, mb.maxSize)
	return frames
}

func (mb *MessageBuffer) Size() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.frames)
}

// maxPendingSeqs bounds the out-of-order window a connection remembers
const maxPendingSeqs = 1024

// ConnectionState tracks per-connection delivery state
type ConnectionState struct {
	mu               sync.Mutex
	sessionReadySent bool

	// contiguous is the highest seq such that every seq <= it was delivered
	contiguous int64
	// ahead holds delivered seqs above contiguous
	ahead map[int64]struct{}
}

func NewConnectionState(afterSeq int64) *ConnectionState {
	if afterSeq < 0 {
		afterSeq = 0
	}
	return &ConnectionState{
		contiguous: afterSeq,
		ahead:      make(map[int64]struct{}),
	}
}

func (cs *ConnectionState) HasSessionReadySent() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.sessionReadySent
}

func (cs *ConnectionState) SetSessionReadySent(sent bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sessionReadySent = sent
}

// MarkDelivered records seq and reports whether it was new for this
// connection. Live pushes and history replays both pass through here, so a
// message reaches the client at most once.
func (cs *ConnectionState) MarkDelivered(seq int64) bool {
	if seq <= 0 {
		return true
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if seq <= cs.contiguous {
		return false
	}
	if _, seen := cs.ahead[seq]; seen {
		return false
	}

	cs.ahead[seq] = struct{}{}
	for {
		if _, ok := cs.ahead[cs.contiguous+1]; !ok {
			break
		}
		delete(cs.ahead, cs.contiguous+1)
		cs.contiguous++
	}

	if len(cs.ahead) > maxPendingSeqs {
		cs.compact()
	}
	return true
}

// compact gives up on the oldest gaps so the window stays bounded
func (cs *ConnectionState) compact() {
	seqs := make([]int64, 0, len(cs.ahead))
	for s := range cs.ahead {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	drop := len(seqs) - maxPendingSeqs/2
	cs.contiguous = seqs[drop-1]
	for _, s := range seqs[:drop] {
		delete(cs.ahead, s)
	}
	for {
		if _, ok := cs.ahead[cs.contiguous+1]; !ok {
			break
		}
		delete(cs.ahead, cs.contiguous+1)
		cs.contiguous++
	}
}

// LastContiguousSeq is the highest seq with no gaps below it
func (cs *ConnectionState) LastContiguousSeq() int64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.contiguous
}
