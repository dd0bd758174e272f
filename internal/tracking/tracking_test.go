package tracking

import (
	"math"
	"testing"
	"time"
)

func TestPanControllerConvergesOnTarget(t *testing.T) {
	p := NewPanController(DefaultPanConfig(), 0)

	// Target fixed to the left of frame center; the controller should walk
	// the angle up until the error collapses.
	for i := 0; i < 200; i++ {
		p.Update(120, 320)
	}
	if p.Angle() <= 0 {
		t.Errorf("expected positive pan toward target, got %v", p.Angle())
	}
}

func TestPanControllerDeadZone(t *testing.T) {
	p := NewPanController(DefaultPanConfig(), 10)
	angle, moved := p.Update(316, 320) // 4 px error, inside the 10 px dead zone
	if moved {
		t.Error("controller moved inside dead zone")
	}
	if angle != 10 {
		t.Errorf("angle changed to %v", angle)
	}
}

func TestPanControllerStepClamp(t *testing.T) {
	p := NewPanController(DefaultPanConfig(), 0)
	before := p.Angle()
	// Huge error cannot move more than MaxStep in one update.
	after, _ := p.Update(-5000, 320)
	if step := math.Abs(after - before); step > DefaultPanConfig().MaxStep+1e-9 {
		t.Errorf("step %v exceeds clamp", step)
	}
}

func TestPanControllerInvert(t *testing.T) {
	cfg := DefaultPanConfig()
	cfg.Invert = true
	p := NewPanController(cfg, 0)
	for i := 0; i < 50; i++ {
		p.Update(120, 320)
	}
	if p.Angle() >= 0 {
		t.Errorf("inverted controller should pan negative, got %v", p.Angle())
	}
}

func TestPanControllerAngleLimits(t *testing.T) {
	p := NewPanController(DefaultPanConfig(), 89)
	for i := 0; i < 500; i++ {
		p.Update(0, 640)
	}
	if p.Angle() > 90 {
		t.Errorf("angle %v beyond +90 limit", p.Angle())
	}
	p.SetAngle(500)
	if p.Angle() != 90 {
		t.Errorf("SetAngle not clamped: %v", p.Angle())
	}
}

func TestDistanceEstimatorAtReference(t *testing.T) {
	d := NewDistanceEstimator(10000)
	got := d.Update(10000)
	if math.Abs(got-RefDistanceFeet) > 1e-9 {
		t.Errorf("distance at reference area = %v, want %v", got, RefDistanceFeet)
	}
}

func TestDistanceEstimatorQuarterAreaDoublesDistance(t *testing.T) {
	d := NewDistanceEstimator(10000)
	// Smaller apparent size means farther away. Step clamp and smoothing mean
	// convergence takes several updates.
	var got float64
	for i := 0; i < 200; i++ {
		got = d.Update(2500)
	}
	if math.Abs(got-2*RefDistanceFeet) > 0.1 {
		t.Errorf("converged distance = %v, want ~%v", got, 2*RefDistanceFeet)
	}
}

func TestDistanceEstimatorStepClamp(t *testing.T) {
	d := NewDistanceEstimator(10000)
	before := d.Distance()
	after := d.Update(100) // absurdly small box
	if after-before > maxDistStepFeet {
		t.Errorf("distance jumped %v in one update", after-before)
	}
}

func TestDistanceEstimatorBounds(t *testing.T) {
	d := NewDistanceEstimator(10000)
	for i := 0; i < 1000; i++ {
		d.Update(1)
	}
	if d.Distance() > MaxDistanceFeet {
		t.Errorf("distance %v beyond max", d.Distance())
	}
	for i := 0; i < 1000; i++ {
		d.Update(1 << 30)
	}
	if d.Distance() < MinDistanceFeet {
		t.Errorf("distance %v below min", d.Distance())
	}
}

func TestDistanceEstimatorRecalibrate(t *testing.T) {
	d := NewDistanceEstimator(10000)
	for i := 0; i < 50; i++ {
		d.Update(2500)
	}
	d.Recalibrate(2500)
	if d.Distance() != RefDistanceFeet {
		t.Errorf("distance after recalibrate = %v", d.Distance())
	}
	if d.RefArea() != 2500 {
		t.Errorf("ref area = %d", d.RefArea())
	}
}

func TestZoneVolume(t *testing.T) {
	cases := []struct {
		dist float64
		want int
	}{
		{2.0, VolNear},
		{4.0, VolNear},
		{5.0, VolMid},
		{6.0, VolMid},
		{8.0, VolFar},
	}
	for _, tc := range cases {
		if got := ZoneVolume(tc.dist); got != tc.want {
			t.Errorf("ZoneVolume(%v) = %d, want %d", tc.dist, got, tc.want)
		}
	}
}

func TestPerceptualLevel(t *testing.T) {
	if got := PerceptualLevel(0); got != 0 {
		t.Errorf("PerceptualLevel(0) = %d", got)
	}
	if got := PerceptualLevel(100); got != 100 {
		t.Errorf("PerceptualLevel(100) = %d", got)
	}
	// The curve sits below linear in the middle of the range.
	if got := PerceptualLevel(50); got >= 50 || got < 30 {
		t.Errorf("PerceptualLevel(50) = %d, want in [30,50)", got)
	}
	if got := PerceptualLevel(200); got != 100 {
		t.Errorf("PerceptualLevel(200) = %d, want clamped to 100", got)
	}
}

func TestVolumePolicyAutoFollowsZones(t *testing.T) {
	v := NewVolumePolicy()
	var level int
	for i := 0; i < 100; i++ {
		level, _ = v.AutoUpdate(2.0)
	}
	if level != VolNear {
		t.Errorf("level converged to %d, want %d", level, VolNear)
	}
}

func TestVolumePolicyGestureOverrideExpires(t *testing.T) {
	now := time.Unix(5000, 0)
	v := NewVolumePolicy()
	v.now = func() time.Time { return now }

	v.Adjust(-GestureVolumeStep)
	if !v.Overridden() {
		t.Fatal("gesture adjust should override auto volume")
	}
	if level, changed := v.AutoUpdate(2.0); changed {
		t.Errorf("auto update changed level to %d during override", level)
	}

	now = now.Add(overrideTTL + time.Second)
	if v.Overridden() {
		t.Fatal("override should have expired")
	}
	if _, changed := v.AutoUpdate(2.0); !changed {
		t.Error("auto update inactive after override expiry")
	}
}

func TestVolumePolicyManualPinHoldsUntilAutoReenabled(t *testing.T) {
	v := NewVolumePolicy()
	v.SetManual(42)
	if v.Level() != 42 {
		t.Errorf("level = %d, want 42", v.Level())
	}
	if _, changed := v.AutoUpdate(8.0); changed {
		t.Error("auto update overrode a dashboard pin")
	}

	v.SetAuto(true)
	if v.Overridden() {
		t.Error("re-enabling auto should clear the pin")
	}
}

func TestVolumePolicyAdjustClamps(t *testing.T) {
	v := NewVolumePolicy()
	v.SetManual(95)
	if got := v.Adjust(GestureVolumeStep); got != 100 {
		t.Errorf("Adjust above max = %d, want 100", got)
	}
	v.SetManual(5)
	if got := v.Adjust(-GestureVolumeStep); got != 0 {
		t.Errorf("Adjust below min = %d, want 0", got)
	}
}
