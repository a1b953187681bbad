package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
)

var ErrSessionNotFound = errors.New("consultation session not found")

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session record, or leaves the existing one untouched
func (r *SessionRepository) Create(ctx context.Context, s *models.ConsultationSession) error {
	const query = `
	INSERT INTO consultation_sessions (
		id,
		consultation_id,
		total_seconds,
		remaining_seconds,
		status,
		created_at,
		updated_at
	)
	VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	ON CONFLICT (consultation_id) DO NOTHING
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		s.ID,
		s.ConsultationID,
		s.TotalSeconds,
		s.RemainingSeconds,
		s.Status,
	)
	return err
}

func (r *SessionRepository) GetByConsultationID(ctx context.Context, consultationID uuid.UUID) (*models.ConsultationSession, error) {
	const query = `
	SELECT
		id,
		consultation_id,
		total_seconds,
		remaining_seconds,
		warned_fifteen,
		warned_five,
		warned_one,
		session_started_at,
		session_ended_at,
		astrologer_joined_at,
		client_joined_at,
		astrologer_left_at,
		client_left_at,
		end_reason,
		status,
		created_at,
		updated_at
	FROM consultation_sessions
	WHERE consultation_id = $1
	LIMIT 1
	`

	var s models.ConsultationSession

	err := r.db.QueryRowContext(ctx, query, consultationID).Scan(
		&s.ID,
		&s.ConsultationID,
		&s.TotalSeconds,
		&s.RemainingSeconds,
		&s.WarnedFifteen,
		&s.WarnedFive,
		&s.WarnedOne,
		&s.SessionStartedAt,
		&s.SessionEndedAt,
		&s.AstrologerJoinedAt,
		&s.ClientJoinedAt,
		&s.AstrologerLeftAt,
		&s.ClientLeftAt,
		&s.EndReason,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveTimerState writes the countdown fields and the session status
func (r *SessionRepository) SaveTimerState(ctx context.Context, s *models.ConsultationSession) error {
	const query = `
	UPDATE consultation_sessions
	SET
		total_seconds = $1,
		remaining_seconds = $2,
		warned_fifteen = $3,
		warned_five = $4,
		warned_one = $5,
		status = $6,
		updated_at = NOW()
	WHERE consultation_id = $7 AND status <> $8
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		s.TotalSeconds,
		s.RemainingSeconds,
		s.WarnedFifteen,
		s.WarnedFive,
		s.WarnedOne,
		s.Status,
		s.ConsultationID,
		models.SessionStatusEnded,
	)
	return err
}

// MarkActive stamps the first start of the countdown
func (r *SessionRepository) MarkActive(ctx context.Context, consultationID uuid.UUID) error {
	const query = `
	UPDATE consultation_sessions
	SET
		session_started_at = COALESCE(session_started_at, NOW()),
		status = $1,
		updated_at = NOW()
	WHERE consultation_id = $2 AND status <> $3
	`

	_, err := r.db.ExecContext(ctx, query, models.SessionStatusActive, consultationID, models.SessionStatusEnded)
	return err
}

// RecordJoined stamps the join time of the given participant role.
// updated_at is left alone; it tracks timer writes only.
func (r *SessionRepository) RecordJoined(ctx context.Context, consultationID uuid.UUID, role string) error {
	query := `
	UPDATE consultation_sessions
	SET client_joined_at = NOW()
	WHERE consultation_id = $1
	`
	if role == models.ParticipantAstrologer {
		query = `
	UPDATE consultation_sessions
	SET astrologer_joined_at = NOW()
	WHERE consultation_id = $1
	`
	}

	_, err := r.db.ExecContext(ctx, query, consultationID)
	return err
}

func (r *SessionRepository) RecordLeft(ctx context.Context, consultationID uuid.UUID, role string) error {
	query := `
	UPDATE consultation_sessions
	SET client_left_at = NOW()
	WHERE consultation_id = $1
	`
	if role == models.ParticipantAstrologer {
		query = `
	UPDATE consultation_sessions
	SET astrologer_left_at = NOW()
	WHERE consultation_id = $1
	`
	}

	_, err := r.db.ExecContext(ctx, query, consultationID)
	return err
}

// EndSession records the final countdown state and the reason
func (r *SessionRepository) EndSession(ctx context.Context, consultationID uuid.UUID, remainingSeconds int, reason string) error {
	const query = `
	UPDATE consultation_sessions
	SET
		session_ended_at = NOW(),
		remaining_seconds = $1,
		end_reason = $2,
		status = $3,
		updated_at = NOW()
	WHERE consultation_id = $4 AND status <> $3
	`

	_, err := r.db.ExecContext(ctx, query, remainingSeconds, reason, models.SessionStatusEnded, consultationID)
	return err
}
