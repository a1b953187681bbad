package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/repositories"
)

// The repositories satisfy these; tests substitute in-memory versions.

type ConsultationStore interface {
	Create(ctx context.Context, c *models.Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Consultation, error)
	List(ctx context.Context, f repositories.ConsultationFilter) ([]*models.Consultation, error)
	UpdateDetails(ctx context.Context, c *models.Consultation) error
	UpdateStatus(ctx context.Context, c *models.Consultation, from models.ConsultationStatus) error
	ListOverdueScheduled(ctx context.Context, cutoff time.Time, limit int) ([]*models.Consultation, error)
}

type MessageStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, bool, error)
	ListAfter(ctx context.Context, consultationID uuid.UUID, afterSeq int64, limit int) ([]*models.ChatMessage, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *models.ConsultationSession) error
	GetByConsultationID(ctx context.Context, consultationID uuid.UUID) (*models.ConsultationSession, error)
	SaveTimerState(ctx context.Context, s *models.ConsultationSession) error
	MarkActive(ctx context.Context, consultationID uuid.UUID) error
	RecordJoined(ctx context.Context, consultationID uuid.UUID, role string) error
	RecordLeft(ctx context.Context, consultationID uuid.UUID, role string) error
	EndSession(ctx context.Context, consultationID uuid.UUID, remainingSeconds int, reason string) error
}

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

var (
	ErrForbidden          = errors.New("not a participant of this consultation")
	ErrOutsideStartWindow = errors.New("outside the start window")
	ErrNotEditable        = errors.New("consultation can no longer be rescheduled")
	ErrSessionNotRunning  = errors.New("session timer is not running")
	ErrSessionEnded       = errors.New("session has ended")
	ErrChatClosed         = errors.New("chat is not open for this consultation")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID   uuid.UUID
	Username string
	Role     models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.UserRoleAdmin
}

// authorize returns the caller's participant role. Admins pass with an
// empty role.
func authorize(c *models.Consultation, a Actor) (string, error) {
	if role := c.ParticipantRole(a.UserID); role != "" {
		return role, nil
	}
	if a.IsAdmin() {
		return "", nil
	}
	return "", ErrForbidden
}
