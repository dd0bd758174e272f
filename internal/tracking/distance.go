package tracking

import "math"

// Distance estimation constants. The estimator assumes the target was
// calibrated at the reference distance; apparent size then scales with the
// inverse square of distance.
const (
	RefDistanceFeet = 5.0
	MinDistanceFeet = 1.0
	MaxDistanceFeet = 15.0

	distSmoothAlpha = 0.15
	maxDistStepFeet = 0.5
)

// DistanceEstimator converts target box area into a smoothed distance.
type DistanceEstimator struct {
	refArea  int
	distance float64
}

// NewDistanceEstimator calibrates against the area observed at the reference
// distance.
func NewDistanceEstimator(refArea int) *DistanceEstimator {
	return &DistanceEstimator{refArea: refArea, distance: RefDistanceFeet}
}

// Recalibrate re-bases the estimator on a new reference area at the reference
// distance (dashboard "recalibrate" command).
func (d *DistanceEstimator) Recalibrate(refArea int) {
	d.refArea = refArea
	d.distance = RefDistanceFeet
}

// RefArea returns the current calibration area.
func (d *DistanceEstimator) RefArea() int { return d.refArea }

// Distance returns the current smoothed estimate in feet.
func (d *DistanceEstimator) Distance() float64 { return d.distance }

// Update folds a new area observation into the estimate. Raw jumps are
// step-clamped before EMA smoothing so a momentary bad box cannot teleport
// the listener.
func (d *DistanceEstimator) Update(area int) float64 {
	ratio := 1.0
	if area > 0 {
		ratio = float64(d.refArea) / float64(area)
	}
	raw := RefDistanceFeet * math.Sqrt(ratio)

	if delta := raw - d.distance; delta > maxDistStepFeet {
		raw = d.distance + maxDistStepFeet
	} else if delta < -maxDistStepFeet {
		raw = d.distance - maxDistStepFeet
	}

	d.distance = (1-distSmoothAlpha)*d.distance + distSmoothAlpha*raw
	d.distance = clamp(d.distance, MinDistanceFeet, MaxDistanceFeet)
	return d.distance
}
