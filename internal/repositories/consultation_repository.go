package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
)

var (
	ErrConsultationNotFound = errors.New("consultation not found")
	// ErrStatusConflict means the stored status changed since it was read
	ErrStatusConflict = errors.New("consultation status changed concurrently")
)

type ConsultationFilter struct {
	Status        *models.ConsultationStatus
	ParticipantID *uuid.UUID
	Limit         int
	Offset        int
}

type ConsultationRepository struct {
	db *sql.DB
}

func NewConsultationRepository(db *sql.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

const consultationColumns = `
	id,
	client_id,
	astrologer_id,
	type,
	status,
	scheduled_at,
	duration_minutes,
	price,
	plan,
	payment_status,
	notes,
	language,
	started_at,
	ended_at,
	last_message_seq,
	created_at,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsultation(row rowScanner) (*models.Consultation, error) {
	var c models.Consultation
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.AstrologerID,
		&c.Type,
		&c.Status,
		&c.ScheduledAt,
		&c.DurationMinutes,
		&c.Price,
		&c.Plan,
		&c.PaymentStatus,
		&c.Notes,
		&c.Language,
		&c.StartedAt,
		&c.EndedAt,
		&c.LastMessageSeq,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConsultationRepository) Create(ctx context.Context, c *models.Consultation) error {
	const query = `
	INSERT INTO consultations (
		id,
		client_id,
		astrologer_id,
		type,
		status,
		scheduled_at,
		duration_minutes,
		price,
		plan,
		payment_status,
		notes,
		language,
		created_at,
		updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	return r.db.QueryRowContext(
		ctx,
		query,
		c.ID,
		c.ClientID,
		c.AstrologerID,
		c.Type,
		c.Status,
		c.ScheduledAt,
		c.DurationMinutes,
		c.Price,
		c.Plan,
		c.PaymentStatus,
		c.Notes,
		c.Language,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ConsultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	query := `SELECT` + consultationColumns + `
	FROM consultations
	WHERE id = $1
	`

	c, err := scanConsultation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConsultationNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns consultations ordered by scheduled time, newest first
func (r *ConsultationRepository) List(ctx context.Context, f ConsultationFilter) ([]*models.Consultation, error) {
	var (
		where []string
		args  []any
	)

	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ParticipantID != nil {
		args = append(args, *f.ParticipantID)
		where = append(where, fmt.Sprintf("(client_id = $%d OR astrologer_id = $%d)", len(args), len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT` + consultationColumns + `
	FROM consultations`
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf("\n\tORDER BY scheduled_at DESC\n\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateDetails writes the descriptive fields. Status is never touched here.
func (r *ConsultationRepository) UpdateDetails(ctx context.Context, c *models.Consultation) error {
	const query = `
	UPDATE consultations
	SET
		scheduled_at = $1,
		duration_minutes = $2,
		price = $3,
		plan = $4,
		payment_status = $5,
		notes = $6,
		language = $7,
		updated_at = NOW()
	WHERE id = $8
	RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		c.ScheduledAt,
		c.DurationMinutes,
		c.Price,
		c.Plan,
		c.PaymentStatus,
		c.Notes,
		c.Language,
		c.ID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConsultationNotFound
	}
	return err
}

// UpdateStatus persists a transition already applied to c. The write only
// succeeds while the stored status still equals from.
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, c *models.Consultation, from models.ConsultationStatus) error {
	const query = `
	UPDATE consultations
	SET
		status = $1,
		started_at = $2,
		ended_at = $3,
		updated_at = $4
	WHERE id = $5 AND status = $6
	`

	res, err := r.db.ExecContext(ctx, query, c.Status, c.StartedAt, c.EndedAt, c.UpdatedAt, c.ID, from)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListOverdueScheduled returns scheduled consultations whose session window
// closed before cutoff.
func (r *ConsultationRepository) ListOverdueScheduled(ctx context.Context, cutoff time.Time, limit int) ([]*models.Consultation, error) {
	query := `SELECT` + consultationColumns + `
	FROM consultations
	WHERE status = $1
		AND scheduled_at + (duration_minutes * INTERVAL '1 minute') < $2
	ORDER BY scheduled_at
	LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, models.ConsultationStatusScheduled, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
