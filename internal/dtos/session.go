package dtos

import (
	"github.com/jaiguru/astro-remedy/internal/timer"
)

type ExtendSessionRequest struct {
	Minutes int `json:"minutes" binding:"required,gt=0"`
}

// SessionStateResponse is the authoritative timer state of a consultation
type SessionStateResponse struct {
	ConsultationID   string         `json:"consultation_id"`
	Status           string         `json:"status"`
	TotalSeconds     int            `json:"total_seconds"`
	RemainingSeconds int            `json:"remaining_seconds"`
	IsActive         bool           `json:"is_active"`
	IsPaused         bool           `json:"is_paused"`
	IsEnded          bool           `json:"is_ended"`
	Warnings         timer.Warnings `json:"warnings"`
	EndReason        string         `json:"end_reason,omitempty"`
}

// Timer warning notification
type TimerWarningPayload struct {
	ConsultationID   string `json:"consultation_id"`
	Warning          string `json:"warning"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Session ended notification
type SessionEndedPayload struct {
	ConsultationID   string `json:"consultation_id"`
	Reason           string `json:"reason"` // "time_limit_reached", "completed_by_admin"
	RemainingSeconds int    `json:"remaining_seconds"`
}

// SurfaceResponse tells a participant which surfaces to mount
type SurfaceResponse struct {
	ConsultationID string        `json:"consultation_id"`
	Type           string        `json:"type"`
	Status         string        `json:"status"`
	IsActive       bool          `json:"is_active"`
	Chat           *ChatSurface  `json:"chat,omitempty"`
	Video          *VideoSurface `json:"video,omitempty"`
}

type ChatSurface struct {
	ReadOnly bool `json:"read_only"`
}

// VideoSurface configures the embedded video-conferencing widget.
// Media never passes through this server.
type VideoSurface struct {
	Domain              string   `json:"domain"`
	RoomName            string   `json:"room_name"`
	DisplayName         string   `json:"display_name"`
	StartWithAudioMuted bool     `json:"start_with_audio_muted"`
	StartWithVideoMuted bool     `json:"start_with_video_muted"`
	Branding            Branding `json:"branding"`
	Commands            []string `json:"commands"`
}

type Branding struct {
	AppName            string `json:"app_name"`
	ShowJitsiWatermark bool   `json:"show_jitsi_watermark"`
	ShowBrandWatermark bool   `json:"show_brand_watermark"`
	DisableDeepLinking bool   `json:"disable_deep_linking"`
}
