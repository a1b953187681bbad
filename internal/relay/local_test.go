package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRelayFanOut(t *testing.T) {
	r := NewLocalRelay()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := r.Subscribe(ctx)
	require.NoError(t, err)
	b, err := r.Subscribe(ctx)
	require.NoError(t, err)

	ev, err := NewEvent("chat_message", "c-1", map[string]int{"seq": 4})
	require.NoError(t, err)
	require.NoError(t, r.Publish(ctx, ev))

	for _, ch := range []<-chan *Event{a, b} {
		select {
		case got := <-ch:
			var payload map[string]int
			require.NoError(t, got.UnmarshalPayload(&payload))
			assert.Equal(t, 4, payload["seq"])
			assert.Equal(t, "c-1", got.ConsultationID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestLocalRelayUnsubscribeOnCancel(t *testing.T) {
	r := NewLocalRelay()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := r.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	ev, _ := NewEvent("ping", "c-1", struct{}{})
	assert.NoError(t, r.Publish(context.Background(), ev))
	assert.NoError(t, r.Close())
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "consultation:abc:events", ChannelFor("abc"))
}
