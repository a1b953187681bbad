package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/relay"
	"github.com/jaiguru/astro-remedy/internal/repositories"
)

type fakeConsultations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Consultation
}

func newFakeConsultations(cs ...*models.Consultation) *fakeConsultations {
	f := &fakeConsultations{byID: make(map[uuid.UUID]*models.Consultation)}
	for _, c := range cs {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeConsultations) Create(_ context.Context, c *models.Consultation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeConsultations) GetByID(_ context.Context, id uuid.UUID) (*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrConsultationNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConsultations) List(_ context.Context, flt repositories.ConsultationFilter) ([]*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Consultation
	for _, c := range f.byID {
		if flt.Status != nil && c.Status != *flt.Status {
			continue
		}
		if flt.ParticipantID != nil && !c.IsParticipant(*flt.ParticipantID) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeConsultations) UpdateDetails(_ context.Context, c *models.Consultation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[c.ID]
	if !ok {
		return repositories.ErrConsultationNotFound
	}
	cp := *c
	cp.Status = stored.Status
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeConsultations) UpdateStatus(_ context.Context, c *models.Consultation, from models.ConsultationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[c.ID]
	if !ok || stored.Status != from {
		return repositories.ErrStatusConflict
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeConsultations) ListOverdueScheduled(_ context.Context, cutoff time.Time, limit int) ([]*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Consultation
	for _, c := range f.byID {
		if c.Status == models.ConsultationStatusScheduled && c.ScheduledAt.Add(c.Duration()).Before(cutoff) {
			cp := *c
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeConsultations) status(id uuid.UUID) models.ConsultationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeSessions struct {
	mu    sync.Mutex
	recs  map[uuid.UUID]*models.ConsultationSession
	joins []string
	lefts []string

	// beforeGet runs ahead of every lookup; set it before the service is used
	beforeGet func(id uuid.UUID)
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{recs: make(map[uuid.UUID]*models.ConsultationSession)}
}

func (f *fakeSessions) Create(_ context.Context, s *models.ConsultationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[s.ConsultationID]; !ok {
		cp := *s
		f.recs[s.ConsultationID] = &cp
	}
	return nil
}

func (f *fakeSessions) GetByConsultationID(_ context.Context, id uuid.UUID) (*models.ConsultationSession, error) {
	if f.beforeGet != nil {
		f.beforeGet(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSessions) SaveTimerState(_ context.Context, s *models.ConsultationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[s.ConsultationID]
	if !ok || rec.Status == models.SessionStatusEnded {
		return nil
	}
	rec.TotalSeconds = s.TotalSeconds
	rec.RemainingSeconds = s.RemainingSeconds
	rec.WarnedFifteen = s.WarnedFifteen
	rec.WarnedFive = s.WarnedFive
	rec.WarnedOne = s.WarnedOne
	rec.Status = s.Status
	return nil
}

func (f *fakeSessions) MarkActive(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recs[id]; ok && rec.Status != models.SessionStatusEnded {
		rec.Status = models.SessionStatusActive
	}
	return nil
}

func (f *fakeSessions) RecordJoined(_ context.Context, _ uuid.UUID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, role)
	return nil
}

func (f *fakeSessions) RecordLeft(_ context.Context, _ uuid.UUID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lefts = append(f.lefts, role)
	return nil
}

func (f *fakeSessions) EndSession(_ context.Context, id uuid.UUID, remaining int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok || rec.Status == models.SessionStatusEnded {
		return nil
	}
	rec.RemainingSeconds = remaining
	rec.EndReason = &reason
	rec.Status = models.SessionStatusEnded
	return nil
}

func (f *fakeSessions) record(id uuid.UUID) *models.ConsultationSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

type fakeMessages struct {
	mu   sync.Mutex
	seq  map[uuid.UUID]int64
	msgs []*models.ChatMessage
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{seq: make(map[uuid.UUID]int64)}
}

func (f *fakeMessages) Append(_ context.Context, msg *models.ChatMessage) (*models.ChatMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg.ClientMsgID != nil {
		for _, m := range f.msgs {
			if m.ConsultationID == msg.ConsultationID && m.SenderID == msg.SenderID &&
				m.ClientMsgID != nil && *m.ClientMsgID == *msg.ClientMsgID {
				cp := *m
				return &cp, false, nil
			}
		}
	}

	f.seq[msg.ConsultationID]++
	cp := *msg
	cp.Seq = f.seq[msg.ConsultationID]
	cp.CreatedAt = time.Now()
	f.msgs = append(f.msgs, &cp)

	out := cp
	return &out, true, nil
}

func (f *fakeMessages) ListAfter(_ context.Context, id uuid.UUID, afterSeq int64, limit int) ([]*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.ChatMessage
	for _, m := range f.msgs {
		if m.ConsultationID == id && m.Seq > afterSeq {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUsers struct {
	byName map[string]*models.User
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := f.byName[username]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []*relay.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev *relay.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t string) []*relay.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*relay.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
