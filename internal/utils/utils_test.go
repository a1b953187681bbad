package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStartWindow(t *testing.T) {
	scheduled := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)
	duration := 30 * time.Minute

	cases := []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"an hour early", scheduled.Add(-time.Hour), false},
		{"eleven minutes early", scheduled.Add(-11 * time.Minute), false},
		{"ten minutes early", scheduled.Add(-10 * time.Minute), true},
		{"on time", scheduled, true},
		{"last second", scheduled.Add(duration), true},
		{"after window", scheduled.Add(duration + time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, msg := ValidateStartWindow(scheduled, duration, tc.now)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, exp, err := GenerateAccessToken(id, "pandit", "astrologer", "secret", time.Hour)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "astrologer", claims.Role)

	_, err = ParseAccessToken(token, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := GenerateAccessToken(id, "pandit", "client", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, "secret")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("om-namah")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "om-namah"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
