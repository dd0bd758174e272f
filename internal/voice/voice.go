// Package voice maps recognized speech to playback commands. Speech
// recognition itself happens out of process; this package only interprets
// transcripts.
package voice

import "strings"

// Command is a playback action derived from a transcript. Values match the
// gesture wire format so downstream handling is shared.
type Command string

const (
	NextTrack Command = "NEXT_TRACK"
	PrevTrack Command = "PREV_TRACK"
	Pause     Command = "PAUSE"
	Play      Command = "PLAY"
	VolUp     Command = "VOL_UP"
	VolDown   Command = "VOL_DOWN"
)

// Phrases returns the grammar the recognizer should be constrained to.
// A tight grammar keeps recognition reliable on the Pi's microphone.
func Phrases() []string {
	return []string{
		"play", "pause", "stop",
		"next", "skip",
		"previous", "back",
		"volume up", "turn up", "louder",
		"volume down", "turn down", "quieter", "softer",
	}
}

// Map interprets a transcript. It returns false when no command phrase is
// present.
func Map(text string) (Command, bool) {
	t := strings.ToLower(text)

	switch {
	case contains(t, "next", "skip"):
		return NextTrack, true
	case contains(t, "previous", "back", "prior", "last"):
		return PrevTrack, true
	case contains(t, "pause", "stop"):
		return Pause, true
	case contains(t, "resume"):
		return Play, true
	case strings.Contains(t, "play") && !strings.Contains(t, "playlist"):
		return Play, true
	case contains(t, "volume up", "turn up", "louder", "higher"):
		return VolUp, true
	case contains(t, "volume down", "turn down", "quieter", "softer"):
		return VolDown, true
	}
	return "", false
}

func contains(t string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}
