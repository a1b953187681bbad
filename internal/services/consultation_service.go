package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/timer"
	"github.com/jaiguru/astro-remedy/internal/utils"
)

type ConsultationService struct {
	repo  ConsultationStore
	clock timer.Clock
}

func NewConsultationService(repo ConsultationStore, clock timer.Clock) *ConsultationService {
	if clock == nil {
		clock = timer.RealClock{}
	}
	return &ConsultationService{repo: repo, clock: clock}
}

// Create books a new consultation in the scheduled state
func (s *ConsultationService) Create(ctx context.Context, req *dtos.CreateConsultationRequest) (*models.Consultation, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client_id: %w", err)
	}
	astrologerID, err := uuid.Parse(req.AstrologerID)
	if err != nil {
		return nil, fmt.Errorf("invalid astrologer_id: %w", err)
	}

	paymentStatus := models.PaymentStatus(req.PaymentStatus)
	if paymentStatus == "" {
		paymentStatus = models.PaymentStatusPending
	}

	c := &models.Consultation{
		ID:              uuid.New(),
		ClientID:        clientID,
		AstrologerID:    astrologerID,
		Type:            models.ConsultationType(req.Type),
		Status:          models.ConsultationStatusScheduled,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Plan:            req.Plan,
		PaymentStatus:   paymentStatus,
		Notes:           req.Notes,
		Language:        req.Language,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}

	l := logger.Ctx(ctx)
	l.Info().
		Str(logger.FieldConsultationID, c.ID.String()).
		Str("type", string(c.Type)).
		Time("scheduled_at", c.ScheduledAt).
		Msg("consultation scheduled")
	return c, nil
}

func (s *ConsultationService) Get(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// GetForActor returns the consultation if the actor takes part in it or is an admin
func (s *ConsultationService) GetForActor(ctx context.Context, id uuid.UUID, actor Actor) (*models.Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorize(c, actor); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the actor's own consultations, or every consultation for admins
func (s *ConsultationService) List(ctx context.Context, actor Actor, q *dtos.ListConsultationsQuery) ([]*models.Consultation, error) {
	f := repositories.ConsultationFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		status := models.ConsultationStatus(q.Status)
		f.Status = &status
	}
	if !actor.IsAdmin() {
		id := actor.UserID
		f.ParticipantID = &id
	}
	return s.repo.List(ctx, f)
}

// UpdateDetails applies descriptive changes. Rescheduling is only possible
// before the session starts.
func (s *ConsultationService) UpdateDetails(ctx context.Context, id uuid.UUID, actor Actor, req *dtos.UpdateConsultationRequest) (*models.Consultation, error) {
	c, err := s.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if req.ScheduledAt != nil || req.DurationMinutes != nil {
		if c.Status != models.ConsultationStatusScheduled {
			return nil, ErrNotEditable
		}
		if req.ScheduledAt != nil {
			c.ScheduledAt = req.ScheduledAt.UTC()
		}
		if req.DurationMinutes != nil {
			c.DurationMinutes = *req.DurationMinutes
		}
	}
	if req.Price != nil {
		c.Price = *req.Price
	}
	if req.Plan != nil {
		c.Plan = *req.Plan
	}
	if req.PaymentStatus != nil {
		c.PaymentStatus = models.PaymentStatus(*req.PaymentStatus)
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
	if req.Language != nil {
		c.Language = *req.Language
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDetails(ctx, c); err != nil {
		return nil, fmt.Errorf("update consultation: %w", err)
	}
	return c, nil
}

// Transition moves the consultation through the status machine. Going live
// is only allowed inside the start window.
func (s *ConsultationService) Transition(ctx context.Context, id uuid.UUID, to models.ConsultationStatus) (*models.Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, s.apply(ctx, c, to)
}

func (s *ConsultationService) apply(ctx context.Context, c *models.Consultation, to models.ConsultationStatus) error {
	now := s.clock.Now()

	if to == models.ConsultationStatusOngoing && c.Status == models.ConsultationStatusScheduled {
		if ok, msg := utils.ValidateStartWindow(c.ScheduledAt, c.Duration(), now); !ok {
			return fmt.Errorf("%w: %s", ErrOutsideStartWindow, msg)
		}
	}

	from := c.Status
	if err := c.Transition(to, now); err != nil {
		return fmt.Errorf("%w: %s -> %s", err, from, to)
	}
	if err := s.repo.UpdateStatus(ctx, c, from); err != nil {
		return err
	}

	l := logger.Ctx(ctx)
	l.Info().
		Str(logger.FieldConsultationID, c.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("consultation status changed")
	return nil
}

func (s *ConsultationService) Start(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	return s.Transition(ctx, id, models.ConsultationStatusOngoing)
}

func (s *ConsultationService) Cancel(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	return s.Transition(ctx, id, models.ConsultationStatusCancelled)
}

func (s *ConsultationService) Complete(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	return s.Transition(ctx, id, models.ConsultationStatusCompleted)
}

func (s *ConsultationService) MarkNoShow(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	return s.Transition(ctx, id, models.ConsultationStatusNoShow)
}
