package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ConsultationType string

const (
	ConsultationTypeVideo       ConsultationType = "video"
	ConsultationTypeAudio       ConsultationType = "audio"
	ConsultationTypeChat        ConsultationType = "chat"
	ConsultationTypeInPerson    ConsultationType = "in-person"
	ConsultationTypeHomeService ConsultationType = "home-service"
)

// Valid reports whether t is one of the known consultation types
func (t ConsultationType) Valid() bool {
	switch t {
	case ConsultationTypeVideo, ConsultationTypeAudio, ConsultationTypeChat,
		ConsultationTypeInPerson, ConsultationTypeHomeService:
		return true
	}
	return false
}

type ConsultationStatus string

const (
	ConsultationStatusScheduled ConsultationStatus = "scheduled"
	ConsultationStatusOngoing   ConsultationStatus = "ongoing"
	ConsultationStatusCompleted ConsultationStatus = "completed"
	ConsultationStatusCancelled ConsultationStatus = "cancelled"
	ConsultationStatusNoShow    ConsultationStatus = "no-show"
)

func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationStatusScheduled, ConsultationStatusOngoing, ConsultationStatusCompleted,
		ConsultationStatusCancelled, ConsultationStatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s
func (s ConsultationStatus) IsTerminal() bool {
	return s == ConsultationStatusCompleted ||
		s == ConsultationStatusCancelled ||
		s == ConsultationStatusNoShow
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidDuration   = errors.New("duration must be positive")
)

// transitions lists the allowed targets for every non-terminal status.
// Terminal statuses have no entry.
var transitions = map[ConsultationStatus][]ConsultationStatus{
	ConsultationStatusScheduled: {
		ConsultationStatusOngoing,
		ConsultationStatusCancelled,
		ConsultationStatusNoShow,
	},
	ConsultationStatusOngoing: {
		ConsultationStatusCompleted,
	},
}

// CanTransition reports whether a consultation may move from one status to another
func CanTransition(from, to ConsultationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Consultation struct {
	ID           uuid.UUID `db:"id"`
	ClientID     uuid.UUID `db:"client_id"`
	AstrologerID uuid.UUID `db:"astrologer_id"`

	Type            ConsultationType   `db:"type"`
	Status          ConsultationStatus `db:"status"`
	ScheduledAt     time.Time          `db:"scheduled_at"`
	DurationMinutes int                `db:"duration_minutes"`

	Price         float64       `db:"price"`
	Plan          string        `db:"plan"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	Notes         string        `db:"notes"`
	Language      string        `db:"language"`

	StartedAt *time.Time `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`

	LastMessageSeq int64 `db:"last_message_seq"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Duration returns the nominal session length
func (c *Consultation) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// Validate checks the invariants that hold for every stored consultation
func (c *Consultation) Validate() error {
	if c.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if !c.Type.Valid() {
		return errors.New("invalid consultation type")
	}
	if !c.Status.Valid() {
		return errors.New("invalid consultation status")
	}
	return nil
}

// Transition moves the consultation to the given status, stamping
// started_at when it goes live and ended_at when a live session finishes.
func (c *Consultation) Transition(to ConsultationStatus, now time.Time) error {
	if !CanTransition(c.Status, to) {
		return ErrInvalidTransition
	}

	if to == ConsultationStatusOngoing {
		started := now
		c.StartedAt = &started
	}
	if c.Status == ConsultationStatusOngoing && to.IsTerminal() {
		ended := now
		c.EndedAt = &ended
	}

	c.Status = to
	c.UpdatedAt = now
	return nil
}

// Participant roles inside a consultation session. Observers are admins
// watching a session; they receive broadcasts but take no part.
const (
	ParticipantClient     = "client"
	ParticipantAstrologer = "astrologer"
	ParticipantObserver   = "observer"
)

// IsParticipant reports whether userID is the client or the astrologer
func (c *Consultation) IsParticipant(userID uuid.UUID) bool {
	return c.ClientID == userID || c.AstrologerID == userID
}

// ParticipantRole derives the session role from ownership, or "" when the
// user takes no part in the consultation.
func (c *Consultation) ParticipantRole(userID uuid.UUID) string {
	switch userID {
	case c.AstrologerID:
		return ParticipantAstrologer
	case c.ClientID:
		return ParticipantClient
	}
	return ""
}
