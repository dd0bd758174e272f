package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event sources for GestureEvent.Source.
const (
	SourceGesture = "gesture"
	SourceVoice   = "voice"
)

// GestureEvent is published on home/gestures by pi1 for both IMU gestures
// and recognized voice commands.
type GestureEvent struct {
	ID        string  `json:"id,omitempty"`
	Type      string  `json:"type"`
	Source    string  `json:"source"`
	Device    string  `json:"device"`
	Timestamp float64 `json:"timestamp"`
}

// NewGestureEvent stamps a gesture event with an ID and the current time.
func NewGestureEvent(kind, source, device string) GestureEvent {
	return GestureEvent{
		ID:        uuid.NewString(),
		Type:      kind,
		Source:    source,
		Device:    device,
		Timestamp: now(),
	}
}

// Pi1Status is published on home/pi1/status.
type Pi1Status struct {
	Status         string  `json:"status"` // online, offline
	LEDEnabled     bool    `json:"led_enabled"`
	GestureEnabled bool    `json:"gesture_enabled"`
	VoiceEnabled   bool    `json:"voice_enabled"`
	Timestamp      float64 `json:"timestamp"`
}

// Pi2Status is published on home/pi2/status.
type Pi2Status struct {
	Status            string  `json:"status,omitempty"`
	Volume            int     `json:"volume"`
	DistanceFt        float64 `json:"distance_ft"`
	IsTracking        bool    `json:"is_tracking"`
	TrackingEnabled   bool    `json:"tracking_enabled"`
	AutoVolumeEnabled bool    `json:"auto_volume_enabled"`
	ManualOverride    bool    `json:"manual_override"`
	PanAngle          float64 `json:"pan_angle"`
	TiltAngle         float64 `json:"tilt_angle"`
	Mood              string  `json:"mood"`
	Timestamp         float64 `json:"timestamp"`
}

// MoodEvent is published on home/mood when pi2 classifies a new mood and
// picks a playlist for it.
type MoodEvent struct {
	ID           string  `json:"id,omitempty"`
	Mood         string  `json:"mood"`
	PlaylistName string  `json:"playlist_name"`
	PlaylistURL  string  `json:"playlist_url"`
	Timestamp    float64 `json:"timestamp"`
}

// NewMoodEvent stamps a mood event with an ID and the current time.
func NewMoodEvent(mood, playlistName, playlistURL string) MoodEvent {
	return MoodEvent{
		ID:           uuid.NewString(),
		Mood:         mood,
		PlaylistName: playlistName,
		PlaylistURL:  playlistURL,
		Timestamp:    now(),
	}
}

// Command is sent on home/pi1/commands and home/pi2/commands, mostly by the
// dashboard. Optional fields are pointers so handlers can tell "absent" from
// zero.
type Command struct {
	Command  string   `json:"command"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Level    *int     `json:"level,omitempty"`
	Angle    *float64 `json:"angle,omitempty"`
	Color    []int    `json:"color,omitempty"`
	Duration float64  `json:"duration,omitempty"`
}

// Command names understood by pi1.
const (
	CmdLEDFlash      = "led_flash"
	CmdLEDSet        = "led_set"
	CmdLEDOff        = "led_off"
	CmdLEDVolume     = "led_volume"
	CmdLEDEnable     = "led_enable"
	CmdGestureEnable = "gesture_enable"
	CmdVoiceEnable   = "voice_enable"
	CmdStatus        = "status"
)

// Command names understood by pi2. CmdStatus is shared.
const (
	CmdSetVolume        = "set_volume"
	CmdTrackingEnable   = "tracking_enable"
	CmdAutoVolumeEnable = "auto_volume_enable"
	CmdPan              = "pan"
	CmdTilt             = "tilt"
	CmdCenter           = "center"
	CmdRecalibrate      = "recalibrate"
)

// now returns the current time as unix seconds, matching the float
// timestamps the dashboard expects.
func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
