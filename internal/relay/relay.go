// Package relay fans consultation events out to every server instance so a
// participant receives them regardless of which instance holds the socket.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	channelFormat  = "consultation:%s:events"
	channelPattern = "consultation:*:events"
)

// ChannelFor returns the pub/sub channel of a consultation
func ChannelFor(consultationID string) string {
	return fmt.Sprintf(channelFormat, consultationID)
}

// Event is one message on the relay
type Event struct {
	Type           string `json:"type"`
	ConsultationID string `json:"consultation_id"`

	// TargetRole restricts delivery to one participant role; empty means all
	TargetRole string `json:"target_role,omitempty"`
	// Seq is the chat sequence number carried by chat events, zero otherwise
	Seq int64 `json:"seq,omitempty"`

	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(eventType, consultationID string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:           eventType,
		ConsultationID: consultationID,
		Payload:        data,
		Timestamp:      time.Now(),
	}, nil
}

func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Subscriber delivers events of every consultation until ctx is done
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *Event, error)
}

type Relay interface {
	Publisher
	Subscriber
	Close() error
}
