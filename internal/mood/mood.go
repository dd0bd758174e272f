// Package mood scores face metrics into a listening mood and recommends a
// playlist for it. The metrics (smile, eyes, brightness, contrast, warmth)
// come from whatever detector runs upstream; the weights here were tuned
// against a calibration photo set.
package mood

// Mood is a coarse emotional state used to pick music.
type Mood string

const (
	Happy   Mood = "happy"
	Sad     Mood = "sad"
	Calm    Mood = "calm"
	Neutral Mood = "neutral"
)

// FaceMetrics are the per-face features the scorer consumes.
type FaceMetrics struct {
	Smile      bool    // smile cascade hit in the mouth region
	Eyes       int     // eye detections in the upper face
	Brightness float64 // mean gray level of the face ROI
	Contrast   float64 // stddev of the gray ROI
	Warmth     float64 // mean(red) - mean(blue) over the ROI
}

// minConfidence is the floor below which non-happy results degrade to calm.
const minConfidence = 45.0

// Score rates each mood for the given metrics and returns the winner with a
// confidence percentage (the winner's share of all points).
func Score(m FaceMetrics) (Mood, float64) {
	scores := map[Mood]float64{Happy: 0, Sad: 0, Calm: 0, Neutral: 1}

	// Smile is the strongest happy signal in the calibration set.
	if m.Smile {
		scores[Happy] += 6
		scores[Calm] += 0.5
	} else {
		scores[Sad]++
		scores[Calm]++
		scores[Neutral]++
	}

	// Brightness bands: calm faces averaged ~101, sad ~92.
	switch {
	case m.Brightness < 90:
		scores[Sad] += 2
	case m.Brightness < 98:
		scores[Sad]++
		scores[Neutral]++
	case m.Brightness < 115:
		scores[Calm] += 2
	default:
		scores[Happy]++
	}

	// Contrast: calm lower (~42), sad higher (~48).
	switch {
	case m.Contrast > 47:
		scores[Sad] += 2
	case m.Contrast > 44:
		scores[Sad]++
		scores[Neutral]++
	case m.Contrast < 40:
		scores[Calm] += 2
	default:
		scores[Calm]++
	}

	// Sad faces tend to hide the eyes.
	switch m.Eyes {
	case 0:
		scores[Sad]++
	case 1:
		scores[Neutral]++
	default:
		scores[Calm]++
	}

	// Warmth: sad lower (~22), calm and happy higher (~24-26).
	switch {
	case m.Warmth < 22.5:
		scores[Sad] += 2
	case m.Warmth < 24.0:
		scores[Sad]++
		scores[Neutral]++
	default:
		scores[Calm]++
	}

	dominant, best, total := Neutral, -1.0, 0.0
	for _, mood := range []Mood{Happy, Sad, Calm, Neutral} {
		total += scores[mood]
		if scores[mood] > best {
			dominant, best = mood, scores[mood]
		}
	}

	confidence := 0.0
	if total > 0 {
		confidence = best / total * 100
	}
	return dominant, confidence
}

// Classify applies the confidence floor: weak non-happy results collapse to
// calm rather than flip-flopping the playlist.
func Classify(m FaceMetrics) (Mood, float64) {
	mood, confidence := Score(m)
	if confidence < minConfidence && mood != Happy {
		mood = Calm
	}
	return mood, confidence
}
