package tracking

import (
	"math"
	"time"
)

// Volume zones by listener distance.
const (
	VolNear = 70
	VolMid  = 80
	VolFar  = 100

	boundNearMidFeet = 4.0
	boundMidFarFeet  = 6.0

	volumeSmoothAlpha = 0.3

	// GestureVolumeStep is the delta applied per swipe gesture.
	GestureVolumeStep = 13

	// overrideTTL is how long a gesture override suppresses auto volume.
	overrideTTL = 10 * time.Second
)

// ZoneVolume maps a distance to its target volume band.
func ZoneVolume(distanceFeet float64) int {
	switch {
	case distanceFeet <= boundNearMidFeet:
		return VolNear
	case distanceFeet <= boundMidFarFeet:
		return VolMid
	default:
		return VolFar
	}
}

// PerceptualLevel maps a 0-100 slider value onto the mixer scale with a ^1.5
// curve, which tracks perceived loudness better than linear.
func PerceptualLevel(percent int) int {
	p := clamp(float64(percent), 0, 100)
	actual := math.Pow(p/100.0, 1.5) * 100
	return int(clamp(actual, 0, 100))
}

// VolumePolicy decides the output volume from distance, gestures, and
// dashboard commands. Gesture adjustments override the automatic policy for a
// short window; explicit dashboard overrides hold until auto volume is
// re-enabled.
type VolumePolicy struct {
	now func() time.Time

	auto    bool
	level   float64
	pinned  bool // dashboard override, no expiry
	stepped bool // gesture override, expires
	setAt   time.Time
}

// NewVolumePolicy starts at the far-zone volume with auto mode on.
func NewVolumePolicy() *VolumePolicy {
	return &VolumePolicy{now: time.Now, auto: true, level: VolFar}
}

// Level returns the current volume percentage.
func (v *VolumePolicy) Level() int { return int(math.Round(v.level)) }

// AutoEnabled reports whether the distance policy is active.
func (v *VolumePolicy) AutoEnabled() bool { return v.auto }

// Overridden reports whether a manual override is currently suppressing auto
// volume.
func (v *VolumePolicy) Overridden() bool {
	if v.pinned {
		return true
	}
	if v.stepped && v.now().Sub(v.setAt) < overrideTTL {
		return true
	}
	v.stepped = false
	return false
}

// SetAuto toggles the distance policy. Enabling it clears any override.
func (v *VolumePolicy) SetAuto(enabled bool) {
	v.auto = enabled
	if enabled {
		v.pinned = false
		v.stepped = false
	}
}

// SetManual pins the volume from a dashboard command.
func (v *VolumePolicy) SetManual(level int) int {
	v.level = clamp(float64(level), 0, 100)
	v.pinned = true
	return v.Level()
}

// Adjust applies a gesture volume step. The result overrides auto volume
// until the override window lapses.
func (v *VolumePolicy) Adjust(delta int) int {
	v.level = clamp(v.level+float64(delta), 0, 100)
	v.stepped = true
	v.setAt = v.now()
	return v.Level()
}

// AutoUpdate folds a distance reading into the level. It returns the level
// and whether the policy changed it; overrides and disabled auto mode leave
// the level untouched.
func (v *VolumePolicy) AutoUpdate(distanceFeet float64) (int, bool) {
	if !v.auto || v.Overridden() {
		return v.Level(), false
	}
	target := float64(ZoneVolume(distanceFeet))
	v.level = (1-volumeSmoothAlpha)*v.level + volumeSmoothAlpha*target
	return v.Level(), true
}
