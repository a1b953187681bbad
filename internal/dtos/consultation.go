package dtos

import (
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
)

// Create consultation request
type CreateConsultationRequest struct {
	ClientID        string    `json:"client_id" binding:"required,uuid"`
	AstrologerID    string    `json:"astrologer_id" binding:"required,uuid"`
	Type            string    `json:"type" binding:"required,consultation_type"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,gt=0"`
	Price           float64   `json:"price" binding:"gte=0"`
	Plan            string    `json:"plan" binding:"max=100"`
	PaymentStatus   string    `json:"payment_status" binding:"omitempty,payment_status"`
	Notes           string    `json:"notes" binding:"max=2000"`
	Language        string    `json:"language" binding:"max=32"`
}

// Update consultation request; only descriptive fields, never status
type UpdateConsultationRequest struct {
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,gt=0"`
	Price           *float64   `json:"price" binding:"omitempty,gte=0"`
	Plan            *string    `json:"plan" binding:"omitempty,max=100"`
	PaymentStatus   *string    `json:"payment_status" binding:"omitempty,payment_status"`
	Notes           *string    `json:"notes" binding:"omitempty,max=2000"`
	Language        *string    `json:"language" binding:"omitempty,max=32"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,consultation_status"`
}

type ListConsultationsQuery struct {
	Status string `form:"status" binding:"omitempty,consultation_status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type ConsultationResponse struct {
	ID              uuid.UUID  `json:"id"`
	ClientID        uuid.UUID  `json:"client_id"`
	AstrologerID    uuid.UUID  `json:"astrologer_id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Price           float64    `json:"price"`
	Plan            string     `json:"plan"`
	PaymentStatus   string     `json:"payment_status"`
	Notes           string     `json:"notes"`
	Language        string     `json:"language"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	LastMessageSeq  int64      `json:"last_message_seq"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func ToConsultationResponse(c *models.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:              c.ID,
		ClientID:        c.ClientID,
		AstrologerID:    c.AstrologerID,
		Type:            string(c.Type),
		Status:          string(c.Status),
		ScheduledAt:     c.ScheduledAt,
		DurationMinutes: c.DurationMinutes,
		Price:           c.Price,
		Plan:            c.Plan,
		PaymentStatus:   string(c.PaymentStatus),
		Notes:           c.Notes,
		Language:        c.Language,
		StartedAt:       c.StartedAt,
		EndedAt:         c.EndedAt,
		LastMessageSeq:  c.LastMessageSeq,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func ToConsultationList(cs []*models.Consultation) []ConsultationResponse {
	out := make([]ConsultationResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToConsultationResponse(c))
	}
	return out
}
