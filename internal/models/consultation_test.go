package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduled() *Consultation {
	return &Consultation{
		Type:            ConsultationTypeVideo,
		Status:          ConsultationStatusScheduled,
		ScheduledAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	}
}

func TestTransitionLifecycle(t *testing.T) {
	c := newScheduled()
	now := c.ScheduledAt

	require.NoError(t, c.Transition(ConsultationStatusOngoing, now))
	require.NotNil(t, c.StartedAt)
	assert.Equal(t, now, *c.StartedAt)

	end := now.Add(time.Hour)
	require.NoError(t, c.Transition(ConsultationStatusCompleted, end))
	require.NotNil(t, c.EndedAt)
	assert.Equal(t, end, *c.EndedAt)

	assert.ErrorIs(t, c.Transition(ConsultationStatusOngoing, end), ErrInvalidTransition)
	assert.ErrorIs(t, c.Transition(ConsultationStatusScheduled, end), ErrInvalidTransition)
	assert.Equal(t, ConsultationStatusCompleted, c.Status)
}

func TestCanTransitionTable(t *testing.T) {
	all := []ConsultationStatus{
		ConsultationStatusScheduled,
		ConsultationStatusOngoing,
		ConsultationStatusCompleted,
		ConsultationStatusCancelled,
		ConsultationStatusNoShow,
	}
	allowed := map[[2]ConsultationStatus]bool{
		{ConsultationStatusScheduled, ConsultationStatusOngoing}:   true,
		{ConsultationStatusScheduled, ConsultationStatusCancelled}: true,
		{ConsultationStatusScheduled, ConsultationStatusNoShow}:    true,
		{ConsultationStatusOngoing, ConsultationStatusCompleted}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ConsultationStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range []ConsultationStatus{ConsultationStatusCompleted, ConsultationStatusCancelled, ConsultationStatusNoShow} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, transitions[s])
	}
}

func TestCancelDoesNotStampEnd(t *testing.T) {
	c := newScheduled()
	require.NoError(t, c.Transition(ConsultationStatusCancelled, c.ScheduledAt))
	assert.Nil(t, c.EndedAt)
	assert.Nil(t, c.StartedAt)
}

func TestValidate(t *testing.T) {
	c := newScheduled()
	require.NoError(t, c.Validate())

	c.DurationMinutes = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidDuration)

	c.DurationMinutes = 30
	c.Type = "tarot"
	assert.Error(t, c.Validate())
}

func TestChatMessageHasFile(t *testing.T) {
	voice := &ChatMessage{MessageType: MessageTypeVoice}
	assert.False(t, voice.HasFile())
	assert.True(t, voice.MessageType.IsMedia())

	empty := ""
	voice.FileURL = &empty
	assert.False(t, voice.HasFile())

	url := "https://cdn.example.com/v.ogg"
	voice.FileURL = &url
	assert.True(t, voice.HasFile())
}
