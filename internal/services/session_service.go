package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/relay"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/timer"
	"github.com/jaiguru/astro-remedy/internal/websocket"
)

const callbackTimeout = 5 * time.Second

type SessionOptions struct {
	// PersistEvery is how many ticks pass between timer state writes
	PersistEvery int
	// OwnershipTTL is how recently another instance must have written an
	// active timer for this instance to leave it alone. Zero disables the check.
	OwnershipTTL time.Duration
}

// liveSession is a placeholder until its timer is set under SessionService.mu.
// ready is closed once the start attempt that created it finishes.
type liveSession struct {
	timer  *timer.SessionTimer
	driver *timer.Driver
	ready  chan struct{}
	ticks  int // driver goroutine only
}

// SessionService runs the server-side countdown of live consultations.
// Each running timer is owned by one instance and its state is written to
// the session record so a restart or reconnect resumes instead of resetting.
type SessionService struct {
	consultations *ConsultationService
	sessions      SessionStore
	publisher     relay.Publisher
	clock         timer.Clock
	opts          SessionOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	live map[uuid.UUID]*liveSession // key: consultation_id
}

func NewSessionService(
	consultations *ConsultationService,
	sessions SessionStore,
	publisher relay.Publisher,
	clock timer.Clock,
	opts SessionOptions,
) *SessionService {
	if clock == nil {
		clock = timer.RealClock{}
	}
	if opts.PersistEvery <= 0 {
		opts.PersistEvery = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionService{
		consultations: consultations,
		sessions:      sessions,
		publisher:     publisher,
		clock:         clock,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
		live:          make(map[uuid.UUID]*liveSession),
	}
}

// StartSession takes a scheduled consultation live, or resumes the timer of
// one that is already ongoing.
func (s *SessionService) StartSession(ctx context.Context, id uuid.UUID, actor Actor) (*dtos.SessionStateResponse, error) {
	c, err := s.consultations.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case models.ConsultationStatusScheduled:
		if err := s.consultations.apply(ctx, c, models.ConsultationStatusOngoing); err != nil {
			return nil, err
		}
	case models.ConsultationStatusOngoing:
	default:
		return nil, fmt.Errorf("%w: consultation is %s", ErrSessionEnded, c.Status)
	}

	return s.ensureRunning(ctx, c)
}

// ensureRunning creates or restores the timer of an ongoing consultation
// and starts its driver. The first caller does the I/O; concurrent callers
// for the same consultation wait for it. s.mu only guards the live map.
func (s *SessionService) ensureRunning(ctx context.Context, c *models.Consultation) (*dtos.SessionStateResponse, error) {
	for {
		s.mu.Lock()
		ls, ok := s.live[c.ID]
		if !ok {
			ls = &liveSession{ready: make(chan struct{})}
			s.live[c.ID] = ls
			s.mu.Unlock()
			return s.startTimer(ctx, c, ls)
		}
		t := ls.timer
		s.mu.Unlock()

		if t != nil {
			state := stateOf(c.ID, t.Snapshot())
			return &state, nil
		}

		select {
		case <-ls.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// startTimer loads or creates the session record and runs the timer.
// ls is the placeholder ensureRunning put in the live map.
func (s *SessionService) startTimer(ctx context.Context, c *models.Consultation, ls *liveSession) (*dtos.SessionStateResponse, error) {
	started := false
	defer func() {
		if !started {
			s.mu.Lock()
			if s.live[c.ID] == ls {
				delete(s.live, c.ID)
			}
			s.mu.Unlock()
		}
		close(ls.ready)
	}()

	rec, err := s.sessions.GetByConsultationID(ctx, c.ID)
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound):
		total := c.DurationMinutes * 60
		rec = &models.ConsultationSession{
			ID:               uuid.New(),
			ConsultationID:   c.ID,
			TotalSeconds:     total,
			RemainingSeconds: total,
			Status:           models.SessionStatusWaiting,
		}
		if err := s.sessions.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("create session record: %w", err)
		}
	case err != nil:
		return nil, err
	case rec.Status == models.SessionStatusEnded:
		return nil, ErrSessionEnded
	case s.ownedElsewhere(rec):
		state := stateOfRecord(rec)
		return &state, nil
	}

	t, err := timer.Restore(snapshotOfRecord(rec), s.callbacksFor(c.ID))
	if err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		// Restored with nothing left on the clock
		s.onEnd(c.ID, t.Snapshot(), false)
		return nil, ErrSessionEnded
	}
	if rec.Status == models.SessionStatusPaused {
		t.Pause()
	}
	driver := timer.NewDriver(t, s.clock, func(snap timer.Snapshot) {
		s.onTick(c.ID, ls, snap)
	})

	if err := s.sessions.MarkActive(ctx, c.ID); err != nil {
		l := logger.Ctx(ctx)
		l.Error().Err(err).Str(logger.FieldConsultationID, c.ID.String()).Msg("mark session active")
	}
	snap := t.Snapshot()
	s.persist(ctx, c.ID, snap)

	s.mu.Lock()
	if s.live[c.ID] != ls {
		// Completed or shut down while loading
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}
	ls.timer = t
	ls.driver = driver
	s.wg.Add(1)
	s.mu.Unlock()
	started = true

	go func() {
		defer s.wg.Done()
		driver.Run(s.ctx)
	}()

	l := logger.Ctx(ctx)
	l.Info().
		Str(logger.FieldConsultationID, c.ID.String()).
		Int("remaining_seconds", snap.RemainingSeconds).
		Msg("session timer running")

	s.publishState(ctx, c.ID, snap, "")
	state := stateOf(c.ID, snap)
	return &state, nil
}

func (s *SessionService) ownedElsewhere(rec *models.ConsultationSession) bool {
	if s.opts.OwnershipTTL <= 0 {
		return false
	}
	if rec.Status != models.SessionStatusActive && rec.Status != models.SessionStatusPaused {
		return false
	}
	return s.clock.Now().Sub(rec.UpdatedAt) < s.opts.OwnershipTTL
}

func (s *SessionService) callbacksFor(id uuid.UUID) timer.Callbacks {
	return timer.Callbacks{
		OnWarning: func(w timer.Warning, snap timer.Snapshot) {
			ctx, cancel := context.WithTimeout(s.ctx, callbackTimeout)
			defer cancel()

			s.persist(ctx, id, snap)
			s.publish(ctx, websocket.MsgTypeTimerWarning, id, "", dtos.TimerWarningPayload{
				ConsultationID:   id.String(),
				Warning:          string(w),
				RemainingSeconds: snap.RemainingSeconds,
			})
		},
		OnEnd: func(snap timer.Snapshot) {
			s.onEnd(id, snap, true)
		},
	}
}

func (s *SessionService) onTick(id uuid.UUID, ls *liveSession, snap timer.Snapshot) {
	if snap.Ended {
		return
	}
	ls.ticks++
	if ls.ticks%s.opts.PersistEvery != 0 {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, callbackTimeout)
	defer cancel()
	s.persist(ctx, id, snap)
	s.publishState(ctx, id, snap, "")
}

// onEnd completes the consultation once its countdown reaches zero
func (s *SessionService) onEnd(id uuid.UUID, snap timer.Snapshot, owned bool) {
	if owned && s.take(id) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, callbackTimeout)
	defer cancel()

	l := logger.L()
	if _, err := s.consultations.Complete(ctx, id); err != nil {
		l.Warn().Err(err).Str(logger.FieldConsultationID, id.String()).Msg("complete after time limit")
	}
	s.endRecord(ctx, id, snap.RemainingSeconds, models.EndReasonTimeLimit)

	l.Info().Str(logger.FieldConsultationID, id.String()).Msg("session time limit reached")
}

// CompleteSession stops a running timer and completes the consultation
func (s *SessionService) CompleteSession(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	remaining := -1
	if ls := s.take(id); ls != nil && ls.timer != nil {
		ls.timer.Stop()
		ls.driver.Stop()
		remaining = ls.timer.Snapshot().RemainingSeconds
	}

	c, err := s.consultations.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.endRecord(ctx, id, remaining, models.EndReasonCompleted)
	return c, nil
}

// endRecord marks the session record ended and tells both participants.
// A negative remaining keeps the last persisted value.
func (s *SessionService) endRecord(ctx context.Context, id uuid.UUID, remaining int, reason string) {
	l := logger.Ctx(ctx)

	if remaining < 0 {
		remaining = 0
		if rec, err := s.sessions.GetByConsultationID(ctx, id); err == nil {
			remaining = rec.RemainingSeconds
		}
	}
	if err := s.sessions.EndSession(ctx, id, remaining, reason); err != nil {
		l.Error().Err(err).Str(logger.FieldConsultationID, id.String()).Msg("end session record")
	}

	s.publish(ctx, websocket.MsgTypeSessionEnded, id, "", dtos.SessionEndedPayload{
		ConsultationID:   id.String(),
		Reason:           reason,
		RemainingSeconds: remaining,
	})
}

func (s *SessionService) Pause(ctx context.Context, id uuid.UUID, actor Actor) (*dtos.SessionStateResponse, error) {
	return s.control(ctx, id, actor, func(t *timer.SessionTimer) error {
		t.Pause()
		return nil
	})
}

func (s *SessionService) Resume(ctx context.Context, id uuid.UUID, actor Actor) (*dtos.SessionStateResponse, error) {
	return s.control(ctx, id, actor, func(t *timer.SessionTimer) error {
		t.Resume()
		return nil
	})
}

// Extend adds minutes to the running session, bounded only by timer.MaxSeconds
func (s *SessionService) Extend(ctx context.Context, id uuid.UUID, actor Actor, minutes int) (*dtos.SessionStateResponse, error) {
	return s.control(ctx, id, actor, func(t *timer.SessionTimer) error {
		if err := t.Extend(minutes); err != nil {
			if errors.Is(err, timer.ErrTimerEnded) {
				return ErrSessionEnded
			}
			return err
		}
		return nil
	})
}

// control applies fn to a running timer. Only the astrologer or an admin
// may steer the countdown.
func (s *SessionService) control(ctx context.Context, id uuid.UUID, actor Actor, fn func(*timer.SessionTimer) error) (*dtos.SessionStateResponse, error) {
	c, err := s.consultations.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && c.ParticipantRole(actor.UserID) != models.ParticipantAstrologer {
		return nil, ErrForbidden
	}

	ls := s.running(id)
	if ls == nil {
		return nil, ErrSessionNotRunning
	}

	if err := fn(ls.timer); err != nil {
		return nil, err
	}

	snap := ls.timer.Snapshot()
	s.persist(ctx, id, snap)
	s.publishState(ctx, id, snap, "")

	state := stateOf(id, snap)
	return &state, nil
}

// State returns the authoritative timer state, from memory when this
// instance runs the timer and from the session record otherwise.
func (s *SessionService) State(ctx context.Context, id uuid.UUID, actor Actor) (*dtos.SessionStateResponse, error) {
	c, err := s.consultations.GetForActor(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if ls := s.running(id); ls != nil {
		state := stateOf(id, ls.timer.Snapshot())
		return &state, nil
	}

	rec, err := s.sessions.GetByConsultationID(ctx, id)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		total := c.DurationMinutes * 60
		return &dtos.SessionStateResponse{
			ConsultationID:   id.String(),
			Status:           string(models.SessionStatusWaiting),
			TotalSeconds:     total,
			RemainingSeconds: total,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	state := stateOfRecord(rec)
	return &state, nil
}

// IsRunning reports whether this instance drives the timer of id
func (s *SessionService) IsRunning(id uuid.UUID) bool {
	return s.running(id) != nil
}

// running returns the live session of id once its timer is set
func (s *SessionService) running(id uuid.UUID) *liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := s.live[id]
	if ls == nil || ls.timer == nil {
		return nil
	}
	return ls
}

// HandleClientJoined records the join, notifies the other party and
// resumes the countdown of an ongoing consultation left without a timer.
func (s *SessionService) HandleClientJoined(ctx context.Context, c *models.Consultation, role, name string) error {
	if role == models.ParticipantObserver {
		return nil
	}
	if err := s.sessions.RecordJoined(ctx, c.ID, role); err != nil {
		return err
	}

	s.publish(ctx, websocket.MsgTypeParticipantJoined, c.ID, otherRole(role), websocket.ParticipantPayload{
		ConsultationID: c.ID.String(),
		Role:           role,
		Name:           name,
	})

	if c.Status != models.ConsultationStatusOngoing {
		return nil
	}
	state, err := s.ensureRunning(ctx, c)
	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			return nil
		}
		return err
	}

	s.publish(ctx, websocket.MsgTypeTimerState, c.ID, role, state)
	return nil
}

// HandleClientLeft records the departure and notifies the other party.
// The countdown keeps running so a reconnect picks up where it left off.
func (s *SessionService) HandleClientLeft(ctx context.Context, consultationID uuid.UUID, role, name string) error {
	if role == models.ParticipantObserver {
		return nil
	}
	if err := s.sessions.RecordLeft(ctx, consultationID, role); err != nil {
		return err
	}

	s.publish(ctx, websocket.MsgTypeParticipantLeft, consultationID, otherRole(role), websocket.ParticipantPayload{
		ConsultationID: consultationID.String(),
		Role:           role,
		Name:           name,
	})
	return nil
}

// Shutdown stops every driver and writes the final timer states
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	live := s.live
	s.live = make(map[uuid.UUID]*liveSession)
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for id, ls := range live {
		if ls.timer != nil {
			s.persist(ctx, id, ls.timer.Snapshot())
		}
	}
	return nil
}

func (s *SessionService) take(id uuid.UUID) *liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := s.live[id]
	delete(s.live, id)
	return ls
}

func (s *SessionService) persist(ctx context.Context, id uuid.UUID, snap timer.Snapshot) {
	rec := &models.ConsultationSession{
		ConsultationID:   id,
		TotalSeconds:     snap.TotalSeconds,
		RemainingSeconds: snap.RemainingSeconds,
		WarnedFifteen:    snap.Warnings.FifteenMin,
		WarnedFive:       snap.Warnings.FiveMin,
		WarnedOne:        snap.Warnings.OneMin,
		Status:           statusOf(snap),
	}
	if err := s.sessions.SaveTimerState(ctx, rec); err != nil {
		l := logger.Ctx(ctx)
		l.Error().Err(err).Str(logger.FieldConsultationID, id.String()).Msg("persist timer state")
	}
}

func (s *SessionService) publishState(ctx context.Context, id uuid.UUID, snap timer.Snapshot, targetRole string) {
	s.publish(ctx, websocket.MsgTypeTimerState, id, targetRole, stateOf(id, snap))
}

func (s *SessionService) publish(ctx context.Context, eventType string, id uuid.UUID, targetRole string, payload interface{}) {
	publishEvent(ctx, s.publisher, eventType, id, targetRole, 0, payload)
}

func publishEvent(ctx context.Context, pub relay.Publisher, eventType string, id uuid.UUID, targetRole string, seq int64, payload interface{}) {
	l := logger.Ctx(ctx)

	ev, err := relay.NewEvent(eventType, id.String(), payload)
	if err != nil {
		l.Error().Err(err).Str("event", eventType).Msg("encode relay event")
		return
	}
	ev.TargetRole = targetRole
	ev.Seq = seq

	if err := pub.Publish(ctx, ev); err != nil {
		l.Error().Err(err).
			Str("event", eventType).
			Str(logger.FieldConsultationID, id.String()).
			Msg("publish relay event")
	}
}

func otherRole(role string) string {
	if role == models.ParticipantAstrologer {
		return models.ParticipantClient
	}
	return models.ParticipantAstrologer
}

func statusOf(snap timer.Snapshot) models.SessionStatus {
	switch {
	case snap.Ended:
		return models.SessionStatusEnded
	case snap.Active && snap.Paused:
		return models.SessionStatusPaused
	case snap.Active:
		return models.SessionStatusActive
	}
	return models.SessionStatusWaiting
}

func stateOf(id uuid.UUID, snap timer.Snapshot) dtos.SessionStateResponse {
	return dtos.SessionStateResponse{
		ConsultationID:   id.String(),
		Status:           string(statusOf(snap)),
		TotalSeconds:     snap.TotalSeconds,
		RemainingSeconds: snap.RemainingSeconds,
		IsActive:         snap.Active,
		IsPaused:         snap.Paused,
		IsEnded:          snap.Ended,
		Warnings:         snap.Warnings,
	}
}

func stateOfRecord(rec *models.ConsultationSession) dtos.SessionStateResponse {
	state := dtos.SessionStateResponse{
		ConsultationID:   rec.ConsultationID.String(),
		Status:           string(rec.Status),
		TotalSeconds:     rec.TotalSeconds,
		RemainingSeconds: rec.RemainingSeconds,
		IsActive:         rec.Status == models.SessionStatusActive || rec.Status == models.SessionStatusPaused,
		IsPaused:         rec.Status == models.SessionStatusPaused,
		IsEnded:          rec.Status == models.SessionStatusEnded,
		Warnings: timer.Warnings{
			FifteenMin: rec.WarnedFifteen,
			FiveMin:    rec.WarnedFive,
			OneMin:     rec.WarnedOne,
		},
	}
	if rec.EndReason != nil {
		state.EndReason = *rec.EndReason
	}
	return state
}

func snapshotOfRecord(rec *models.ConsultationSession) timer.Snapshot {
	return timer.Snapshot{
		TotalSeconds:     rec.TotalSeconds,
		RemainingSeconds: rec.RemainingSeconds,
		Paused:           rec.Status == models.SessionStatusPaused,
		Warnings: timer.Warnings{
			FifteenMin: rec.WarnedFifteen,
			FiveMin:    rec.WarnedFive,
			OneMin:     rec.WarnedOne,
		},
	}
}
