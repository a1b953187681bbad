package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConsultation(t *testing.T) {
	f := newFixture(t, models.ConsultationTypeVideo, 30)

	c, err := f.consultationSvc.Create(context.Background(), &dtos.CreateConsultationRequest{
		ClientID:        f.c.ClientID.String(),
		AstrologerID:    f.c.AstrologerID.String(),
		Type:            string(models.ConsultationTypeChat),
		ScheduledAt:     t0.Add(24 * time.Hour),
		DurationMinutes: 45,
		Price:           1100,
		Plan:            "Premium",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationStatusScheduled, c.Status)
	assert.Equal(t, models.PaymentStatusPending, c.PaymentStatus)
	assert.Equal(t, models.ConsultationStatusScheduled, f.consultations.status(c.ID))

	_, err = f.consultationSvc.Create(context.Background(), &dtos.CreateConsultationRequest{
		ClientID:        "not-a-uuid",
		AstrologerID:    f.c.AstrologerID.String(),
		Type:            string(models.ConsultationTypeChat),
		DurationMinutes: 45,
	})
	assert.Error(t, err)
}

func TestStartWindow(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{"ten minutes early", t0.Add(-10 * time.Minute), false},
		{"eleven minutes early", t0.Add(-11 * time.Minute), true},
		{"on time", t0, false},
		{"half way through", t0.Add(15 * time.Minute), false},
		{"after the window", t0.Add(31 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, models.ConsultationTypeVideo, 30)
			f.consultationSvc.clock = timer.NewManualClock(tt.now)

			c, err := f.consultationSvc.Start(context.Background(), f.c.ID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideStartWindow)
				assert.Equal(t, models.ConsultationStatusScheduled, f.consultations.status(f.c.ID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ConsultationStatusOngoing, c.Status)
			require.NotNil(t, c.StartedAt)
			assert.Equal(t, tt.now, *c.StartedAt)
		})
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal statuses have no exits", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		_, err := f.consultationSvc.Cancel(ctx, f.c.ID)
		require.NoError(t, err)

		for _, op := range []func(context.Context, uuid.UUID) (*models.Consultation, error){
			f.consultationSvc.Start,
			f.consultationSvc.Complete,
			f.consultationSvc.MarkNoShow,
			f.consultationSvc.Cancel,
		} {
			_, err := op(ctx, f.c.ID)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		}
		assert.Equal(t, models.ConsultationStatusCancelled, f.consultations.status(f.c.ID))
	})

	t.Run("ongoing only completes", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		_, err := f.consultationSvc.Start(ctx, f.c.ID)
		require.NoError(t, err)

		_, err = f.consultationSvc.Cancel(ctx, f.c.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		_, err = f.consultationSvc.MarkNoShow(ctx, f.c.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		c, err := f.consultationSvc.Complete(ctx, f.c.ID)
		require.NoError(t, err)
		assert.NotNil(t, c.EndedAt)
	})

	t.Run("lost race reports conflict", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		stale, err := f.consultationSvc.Get(ctx, f.c.ID)
		require.NoError(t, err)

		_, err = f.consultationSvc.Cancel(ctx, f.c.ID)
		require.NoError(t, err)

		err = f.consultationSvc.apply(ctx, stale, models.ConsultationStatusNoShow)
		assert.ErrorIs(t, err, repositories.ErrStatusConflict)
	})

	t.Run("unknown consultation", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		_, err := f.consultationSvc.Start(ctx, uuid.New())
		assert.ErrorIs(t, err, repositories.ErrConsultationNotFound)
	})
}

func TestGetForActor(t *testing.T) {
	f := newFixture(t, models.ConsultationTypeVideo, 30)
	ctx := context.Background()

	for _, actor := range []Actor{f.client, f.astrologer, f.admin} {
		_, err := f.consultationSvc.GetForActor(ctx, f.c.ID, actor)
		assert.NoError(t, err, actor.Role)
	}

	stranger := Actor{UserID: uuid.New(), Role: models.UserRoleAstrologer}
	_, err := f.consultationSvc.GetForActor(ctx, f.c.ID, stranger)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListScopesToParticipant(t *testing.T) {
	f := newFixture(t, models.ConsultationTypeVideo, 30)
	other := &models.Consultation{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		AstrologerID:    uuid.New(),
		Type:            models.ConsultationTypeChat,
		Status:          models.ConsultationStatusScheduled,
		ScheduledAt:     t0,
		DurationMinutes: 15,
	}
	require.NoError(t, f.consultations.Create(context.Background(), other))

	mine, err := f.consultationSvc.List(context.Background(), f.client, &dtos.ListConsultationsQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.c.ID, mine[0].ID)

	all, err := f.consultationSvc.List(context.Background(), f.admin, &dtos.ListConsultationsQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ongoing, err := f.consultationSvc.List(context.Background(), f.admin, &dtos.ListConsultationsQuery{
		Status: string(models.ConsultationStatusOngoing),
	})
	require.NoError(t, err)
	assert.Empty(t, ongoing)
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	later := t0.Add(48 * time.Hour)
	notes := "bring birth chart"

	t.Run("reschedule while scheduled", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		c, err := f.consultationSvc.UpdateDetails(ctx, f.c.ID, f.client, &dtos.UpdateConsultationRequest{
			ScheduledAt: &later,
			Notes:       &notes,
		})
		require.NoError(t, err)
		assert.Equal(t, later, c.ScheduledAt)
		assert.Equal(t, notes, c.Notes)
	})

	t.Run("no reschedule once live", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		_, err := f.consultationSvc.Start(ctx, f.c.ID)
		require.NoError(t, err)

		_, err = f.consultationSvc.UpdateDetails(ctx, f.c.ID, f.admin, &dtos.UpdateConsultationRequest{
			ScheduledAt: &later,
		})
		assert.ErrorIs(t, err, ErrNotEditable)

		c, err := f.consultationSvc.UpdateDetails(ctx, f.c.ID, f.admin, &dtos.UpdateConsultationRequest{
			Notes: &notes,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ConsultationStatusOngoing, c.Status)
	})

	t.Run("stranger", func(t *testing.T) {
		f := newFixture(t, models.ConsultationTypeVideo, 30)
		_, err := f.consultationSvc.UpdateDetails(ctx, f.c.ID, Actor{UserID: uuid.New()}, &dtos.UpdateConsultationRequest{
			Notes: &notes,
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
