package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	sc := NewSurfaceComposer(VideoConfig{Domain: "meet.jit.si", RoomPrefix: "jaiguru", BrandName: "Jai Guru"})
	c := &models.Consultation{ID: uuid.New()}

	tests := []struct {
		name      string
		in        SurfaceInput
		wantChat  bool
		readOnly  bool
		wantVideo bool
		camOff    bool
	}{
		{
			name:     "chat before start",
			in:       SurfaceInput{Type: models.ConsultationTypeChat, Status: models.ConsultationStatusScheduled},
			wantChat: true,
		},
		{
			name:     "chat live",
			in:       SurfaceInput{Type: models.ConsultationTypeChat, Status: models.ConsultationStatusOngoing, IsActive: true},
			wantChat: true,
		},
		{
			name:     "chat finished",
			in:       SurfaceInput{Type: models.ConsultationTypeChat, Status: models.ConsultationStatusCompleted},
			wantChat: true,
			readOnly: true,
		},
		{
			name: "video before start",
			in:   SurfaceInput{Type: models.ConsultationTypeVideo, Status: models.ConsultationStatusScheduled},
		},
		{
			name:      "video live",
			in:        SurfaceInput{Type: models.ConsultationTypeVideo, Status: models.ConsultationStatusOngoing, IsActive: true},
			wantChat:  true,
			wantVideo: true,
		},
		{
			name:      "audio live",
			in:        SurfaceInput{Type: models.ConsultationTypeAudio, Status: models.ConsultationStatusOngoing, IsActive: true},
			wantChat:  true,
			wantVideo: true,
			camOff:    true,
		},
		{
			name: "video finished",
			in:   SurfaceInput{Type: models.ConsultationTypeVideo, Status: models.ConsultationStatusCompleted},
		},
		{
			name:     "in person live",
			in:       SurfaceInput{Type: models.ConsultationTypeInPerson, Status: models.ConsultationStatusOngoing, IsActive: true},
			wantChat: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sc.Compose(c, tt.in, "Asha")

			assert.Equal(t, c.ID.String(), got.ConsultationID)
			assert.Equal(t, string(tt.in.Status), got.Status)

			if tt.wantChat {
				require.NotNil(t, got.Chat)
				assert.Equal(t, tt.readOnly, got.Chat.ReadOnly)
			} else {
				assert.Nil(t, got.Chat)
			}

			if !tt.wantVideo {
				assert.Nil(t, got.Video)
				return
			}
			require.NotNil(t, got.Video)
			assert.Equal(t, "meet.jit.si", got.Video.Domain)
			assert.Equal(t, "jaiguru-"+c.ID.String(), got.Video.RoomName)
			assert.Equal(t, "Asha", got.Video.DisplayName)
			assert.Equal(t, tt.camOff, got.Video.StartWithVideoMuted)
			assert.False(t, got.Video.StartWithAudioMuted)
			assert.Equal(t, "Jai Guru", got.Video.Branding.AppName)
			assert.Contains(t, got.Video.Commands, "hangup")
		})
	}
}

func TestRoomNameWithoutPrefix(t *testing.T) {
	c := &models.Consultation{ID: uuid.New()}
	assert.Equal(t, c.ID.String(), NewSurfaceComposer(VideoConfig{}).RoomName(c))
}
