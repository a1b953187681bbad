package services

import (
	"context"
	"errors"
	"time"

	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/timer"
)

const sweepBatchSize = 100

// NoShowSweeper marks scheduled consultations as no-show once their window
// plus a grace period has passed without anyone starting them.
type NoShowSweeper struct {
	consultations *ConsultationService
	clock         timer.Clock
	grace         time.Duration
	interval      time.Duration
}

func NewNoShowSweeper(consultations *ConsultationService, clock timer.Clock, grace, interval time.Duration) *NoShowSweeper {
	if clock == nil {
		clock = timer.RealClock{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &NoShowSweeper{
		consultations: consultations,
		clock:         clock,
		grace:         grace,
		interval:      interval,
	}
}

// Run sweeps every interval until ctx is cancelled
func (w *NoShowSweeper) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	l := logger.L()
	l.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("no-show sweeper started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if _, err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error().Err(err).Msg("no-show sweep failed")
			}
		}
	}
}

// Sweep marks one batch of overdue consultations and returns how many changed
func (w *NoShowSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := w.clock.Now().Add(-w.grace)

	overdue, err := w.consultations.repo.ListOverdueScheduled(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, c := range overdue {
		err := w.consultations.apply(ctx, c, models.ConsultationStatusNoShow)
		switch {
		case err == nil:
			marked++
		case errors.Is(err, repositories.ErrStatusConflict), errors.Is(err, models.ErrInvalidTransition):
			// Started or cancelled since the query ran
		default:
			return marked, err
		}
	}

	if marked > 0 {
		l := logger.L()
		l.Info().Int("count", marked).Msg("consultations marked no-show")
	}
	return marked, nil
}
