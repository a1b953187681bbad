package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id,
	consultation_id,
	sender_id,
	seq,
	client_msg_id,
	message,
	message_type,
	file_url,
	created_at`

func scanMessage(row rowScanner) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(
		&m.ID,
		&m.ConsultationID,
		&m.SenderID,
		&m.Seq,
		&m.ClientMsgID,
		&m.Message,
		&m.MessageType,
		&m.FileURL,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Append stores msg with the next sequence number of its consultation.
// When the sender's client_msg_id was already stored, the existing message
// is returned and created is false.
//
// The consultation row is locked before the client_msg_id lookup, so two
// concurrent resends of one message serialize and the second sees the first.
func (r *MessageRepository) Append(ctx context.Context, msg *models.ChatMessage) (stored *models.ChatMessage, created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	const lock = `
	SELECT last_message_seq
	FROM consultations
	WHERE id = $1
	FOR UPDATE
	`
	var lastSeq int64
	if err = tx.QueryRowContext(ctx, lock, msg.ConsultationID).Scan(&lastSeq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrConsultationNotFound
		}
		return nil, false, err
	}

	dedup := msg.ClientMsgID != nil && *msg.ClientMsgID != ""
	if dedup {
		existing, lookupErr := r.findByClientMsgID(ctx, tx, msg)
		if lookupErr == nil {
			if err = tx.Commit(); err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		if !errors.Is(lookupErr, sql.ErrNoRows) {
			err = lookupErr
			return nil, false, err
		}
	}

	const nextSeq = `
	UPDATE consultations
	SET last_message_seq = last_message_seq + 1
	WHERE id = $1
	RETURNING last_message_seq
	`
	if err = tx.QueryRowContext(ctx, nextSeq, msg.ConsultationID).Scan(&msg.Seq); err != nil {
		return nil, false, err
	}

	const insert = `
	INSERT INTO consultation_messages (
		id,
		consultation_id,
		sender_id,
		seq,
		client_msg_id,
		message,
		message_type,
		file_url,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	ON CONFLICT (consultation_id, sender_id, client_msg_id) DO NOTHING
	RETURNING created_at
	`
	err = tx.QueryRowContext(
		ctx,
		insert,
		msg.ID,
		msg.ConsultationID,
		msg.SenderID,
		msg.Seq,
		msg.ClientMsgID,
		msg.Message,
		msg.MessageType,
		msg.FileURL,
	).Scan(&msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) && dedup {
		// Lost a race the lock did not cover; the stored copy wins
		tx.Rollback()
		existing, lookupErr := r.findByClientMsgID(ctx, r.db, msg)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("load deduplicated message: %w", lookupErr)
		}
		return existing, false, nil
	}
	if err != nil {
		err = fmt.Errorf("insert message: %w", err)
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *MessageRepository) findByClientMsgID(ctx context.Context, q queryRower, msg *models.ChatMessage) (*models.ChatMessage, error) {
	query := `SELECT` + messageColumns + `
	FROM consultation_messages
	WHERE consultation_id = $1 AND sender_id = $2 AND client_msg_id = $3
	`
	return scanMessage(q.QueryRowContext(ctx, query, msg.ConsultationID, msg.SenderID, *msg.ClientMsgID))
}

// ListAfter returns up to limit messages with seq greater than afterSeq, ascending
func (r *MessageRepository) ListAfter(ctx context.Context, consultationID uuid.UUID, afterSeq int64, limit int) ([]*models.ChatMessage, error) {
	query := `SELECT` + messageColumns + `
	FROM consultation_messages
	WHERE consultation_id = $1 AND seq > $2
	ORDER BY seq ASC
	LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, consultationID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
