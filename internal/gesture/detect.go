package gesture

import "time"

// Kind identifies a detected gesture. Values match the wire format published
// on the gesture topic.
type Kind string

const (
	SwipeUp    Kind = "SWIPE_UP"
	SwipeDown  Kind = "SWIPE_DOWN"
	TwistLeft  Kind = "TWIST_LEFT"
	TwistRight Kind = "TWIST_RIGHT"
)

// Detection thresholds, converted from the sensor's raw register units.
var (
	motionStartAyG   = RawAccelToG(1000)
	motionStartGyro  = RawGyroToDPS(1000)
	swipeGzDPS       = RawGyroToDPS(1800)
	gxTwistDPS       = RawGyroToDPS(8000)
	twistAyG         = RawAccelToG(1500)
	ayDuringSwipeG   = RawAccelToG(20000)
	gzDuringTwistDPS = RawGyroToDPS(30000)
)

const (
	// BaselineSamples is how many readings the detector averages before arming.
	BaselineSamples = 100

	// Cooldown suppresses detection after a gesture fires.
	Cooldown = 800 * time.Millisecond
)

// Baseline is the resting-state offset removed from each sample.
type Baseline struct {
	Ay float64
	Gz float64
}

// Detector consumes samples and reports gestures. After each detection it
// recalibrates the baseline, mirroring how a held sensor drifts between
// gestures.
type Detector struct {
	now func() time.Time

	enabled   bool
	baseline  Baseline
	sumAy     float64
	sumGz     float64
	collected int
	armed     bool
	quietTil  time.Time
}

// NewDetector returns a detector that starts in the calibrating state.
func NewDetector() *Detector {
	return &Detector{now: time.Now, enabled: true}
}

// SetEnabled gates detection. While disabled, samples still feed calibration.
func (d *Detector) SetEnabled(v bool) { d.enabled = v }

// Enabled reports whether detection is active.
func (d *Detector) Enabled() bool { return d.enabled }

// Baseline returns the current resting-state offsets.
func (d *Detector) Baseline() Baseline { return d.baseline }

// Armed reports whether calibration has completed.
func (d *Detector) Armed() bool { return d.armed }

// Feed processes one sample. It returns the detected gesture and true when a
// gesture fires; otherwise the zero Kind and false.
func (d *Detector) Feed(s Sample) (Kind, bool) {
	if d.now().Before(d.quietTil) {
		// Cooldown: drop samples so the tail of the gesture motion does not
		// pollute the next baseline.
		return "", false
	}

	if !d.armed {
		d.sumAy += s.Accel[1]
		d.sumGz += s.Gyro[2]
		d.collected++
		if d.collected >= BaselineSamples {
			d.baseline = Baseline{Ay: d.sumAy / float64(d.collected), Gz: d.sumGz / float64(d.collected)}
			d.sumAy, d.sumGz, d.collected = 0, 0, 0
			d.armed = true
		}
		return "", false
	}

	if !d.enabled {
		return "", false
	}

	kind, ok := classify(s, d.baseline)
	if !ok {
		return "", false
	}

	// Re-enter calibration so the next gesture is measured against a fresh
	// baseline, after the cooldown window.
	d.armed = false
	d.quietTil = d.now().Add(Cooldown)
	return kind, true
}

// classify applies the swipe/twist rules to a single baseline-corrected sample.
func classify(s Sample, b Baseline) (Kind, bool) {
	dy := s.Accel[1] - b.Ay
	dgz := s.Gyro[2] - b.Gz
	gx := s.Gyro[0]

	absDy := abs(dy)
	absDgz := abs(dgz)
	absGx := abs(gx)

	// Below the motion floor on every axis: still at rest.
	if absDy < motionStartAyG && absDgz < motionStartGyro && absGx < motionStartGyro {
		return "", false
	}

	// Twist is gx-dominated with a real ay component and bounded gz.
	if absGx > gxTwistDPS && absDy > twistAyG && absDgz < gzDuringTwistDPS {
		if gx < 0 {
			return TwistRight, true
		}
		return TwistLeft, true
	}

	// Swipe is gz-dominated with bounded ay.
	if absDgz > swipeGzDPS && absDy < ayDuringSwipeG {
		if dgz > 0 {
			return SwipeUp, true
		}
		return SwipeDown, true
	}

	return "", false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
