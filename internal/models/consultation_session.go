package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusWaiting SessionStatus = "waiting"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusPaused  SessionStatus = "paused"
	SessionStatusEnded   SessionStatus = "ended"
)

// Reasons recorded when a session ends
const (
	EndReasonTimeLimit = "time_limit_reached"
	EndReasonCompleted = "completed_by_admin"
)

// ConsultationSession is the persisted timer state of a live consultation.
// It lets a reconnecting participant resume the countdown instead of
// restarting from the nominal duration.
type ConsultationSession struct {
	ID             uuid.UUID `db:"id"`
	ConsultationID uuid.UUID `db:"consultation_id"`

	TotalSeconds     int  `db:"total_seconds"`
	RemainingSeconds int  `db:"remaining_seconds"`
	WarnedFifteen    bool `db:"warned_fifteen"`
	WarnedFive       bool `db:"warned_five"`
	WarnedOne        bool `db:"warned_one"`

	SessionStartedAt *time.Time `db:"session_started_at"`
	SessionEndedAt   *time.Time `db:"session_ended_at"`

	AstrologerJoinedAt *time.Time `db:"astrologer_joined_at"`
	ClientJoinedAt     *time.Time `db:"client_joined_at"`

	AstrologerLeftAt *time.Time `db:"astrologer_left_at"`
	ClientLeftAt     *time.Time `db:"client_left_at"`

	EndReason *string       `db:"end_reason"`
	Status    SessionStatus `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
