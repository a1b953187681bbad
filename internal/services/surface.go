package services

import (
	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/models"
)

// Remote commands the embedded video widget exposes to the page
var VideoCommands = []string{
	"toggleAudio",
	"toggleVideo",
	"hangup",
	"setVideoQuality",
	"setVirtualBackground",
}

type VideoConfig struct {
	Domain     string
	RoomPrefix string
	BrandName  string
}

// SurfaceInput is everything the composition depends on
type SurfaceInput struct {
	Type     models.ConsultationType
	Status   models.ConsultationStatus
	IsActive bool
}

type SurfaceComposer struct {
	video VideoConfig
}

func NewSurfaceComposer(video VideoConfig) *SurfaceComposer {
	return &SurfaceComposer{video: video}
}

// Compose decides which surfaces a participant mounts:
//   - chat when the consultation is a chat one or the session is live,
//     read-only once the consultation is over;
//   - video when a video or audio consultation is live, audio ones joining
//     with the camera off.
func (sc *SurfaceComposer) Compose(c *models.Consultation, in SurfaceInput, displayName string) dtos.SurfaceResponse {
	resp := dtos.SurfaceResponse{
		ConsultationID: c.ID.String(),
		Type:           string(in.Type),
		Status:         string(in.Status),
		IsActive:       in.IsActive,
	}

	if in.Status.IsTerminal() {
		if in.Type == models.ConsultationTypeChat {
			resp.Chat = &dtos.ChatSurface{ReadOnly: true}
		}
		return resp
	}

	if in.Type == models.ConsultationTypeChat || in.IsActive {
		resp.Chat = &dtos.ChatSurface{}
	}

	if in.IsActive && (in.Type == models.ConsultationTypeVideo || in.Type == models.ConsultationTypeAudio) {
		resp.Video = &dtos.VideoSurface{
			Domain:              sc.video.Domain,
			RoomName:            sc.RoomName(c),
			DisplayName:         displayName,
			StartWithVideoMuted: in.Type == models.ConsultationTypeAudio,
			Branding: dtos.Branding{
				AppName:            sc.video.BrandName,
				DisableDeepLinking: true,
			},
			Commands: append([]string(nil), VideoCommands...),
		}
	}
	return resp
}

// RoomName is stable per consultation so both parties land in the same room
func (sc *SurfaceComposer) RoomName(c *models.Consultation) string {
	if sc.video.RoomPrefix == "" {
		return c.ID.String()
	}
	return sc.video.RoomPrefix + "-" + c.ID.String()
}
