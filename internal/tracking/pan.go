// Package tracking holds the camera-follow control logic for the pi2 agent:
// a PD pan controller, a bbox-area distance estimator, and the distance-based
// volume policy. Detection hardware sits behind interfaces elsewhere; this
// package is pure math over detected boxes.
package tracking

// Box is a detected target in frame coordinates.
type Box struct {
	X, Y, W, H int
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 { return float64(b.X) + float64(b.W)/2 }

// Area returns the box area in pixels.
func (b Box) Area() int { return b.W * b.H }

// PanConfig tunes the PD pan controller.
type PanConfig struct {
	Kp          float64 // proportional gain
	Kd          float64 // derivative gain
	DeadZone    float64 // px: errors inside are ignored
	MaxStep     float64 // deg: per-update clamp
	ErrorSmooth float64 // EMA factor on the raw error
	Invert      bool    // flip direction for mirrored mounts
	MinAngle    float64
	MaxAngle    float64
}

// DefaultPanConfig returns the gains the rig was tuned with.
func DefaultPanConfig() PanConfig {
	return PanConfig{
		Kp:          0.02,
		Kd:          0.015,
		DeadZone:    10.0,
		MaxStep:     3.0,
		ErrorSmooth: 0.3,
		MinAngle:    -90.0,
		MaxAngle:    90.0,
	}
}

// PanController steers the pan servo toward the target center.
type PanController struct {
	cfg PanConfig

	angle   float64
	errFilt float64
	prevErr float64
}

// NewPanController starts at the given servo angle so the head does not snap
// on startup.
func NewPanController(cfg PanConfig, startAngle float64) *PanController {
	return &PanController{cfg: cfg, angle: startAngle}
}

// Angle returns the current commanded pan angle.
func (p *PanController) Angle() float64 { return p.angle }

// SetAngle force-sets the servo angle (manual pan from the dashboard).
func (p *PanController) SetAngle(deg float64) {
	p.angle = clamp(deg, p.cfg.MinAngle, p.cfg.MaxAngle)
}

// Update advances the controller with the target center and the frame center.
// It returns the new angle and whether it changed.
func (p *PanController) Update(targetCenterX, frameCenterX float64) (float64, bool) {
	raw := frameCenterX - targetCenterX
	p.errFilt = (1-p.cfg.ErrorSmooth)*p.errFilt + p.cfg.ErrorSmooth*raw

	deriv := p.errFilt - p.prevErr
	p.prevErr = p.errFilt

	if abs(p.errFilt) <= p.cfg.DeadZone {
		return p.angle, false
	}

	delta := p.errFilt*p.cfg.Kp + deriv*p.cfg.Kd
	delta = clamp(delta, -p.cfg.MaxStep, p.cfg.MaxStep)
	if p.cfg.Invert {
		delta = -delta
	}
	p.angle = clamp(p.angle+delta, p.cfg.MinAngle, p.cfg.MaxAngle)
	return p.angle, true
}

// Decay bleeds off the error state while the target is lost, so tracking does
// not lurch when it reacquires.
func (p *PanController) Decay() {
	p.errFilt *= 0.9
	p.prevErr *= 0.9
}

// Reset clears the error state entirely (used after reacquisition).
func (p *PanController) Reset() {
	p.errFilt = 0
	p.prevErr = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
