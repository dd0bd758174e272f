package gesture

import (
	"testing"
	"time"
)

// rest is a typical at-rest reading with small offsets the baseline should
// absorb.
var rest = Sample{
	Accel: [3]float64{0.01, 0.12, 0.98},
	Gyro:  [3]float64{1.5, -0.8, 4.0},
}

func calibrated(t *testing.T) *Detector {
	t.Helper()
	d := NewDetector()
	for i := 0; i < BaselineSamples; i++ {
		if _, ok := d.Feed(rest); ok {
			t.Fatal("gesture fired during calibration")
		}
	}
	if !d.Armed() {
		t.Fatal("detector not armed after calibration")
	}
	return d
}

func swipeSample(gz float64) Sample {
	s := rest
	s.Gyro[2] = rest.Gyro[2] + gz
	return s
}

func twistSample(gx, ay float64) Sample {
	s := rest
	s.Gyro[0] = gx
	s.Accel[1] = rest.Accel[1] + ay
	return s
}

func TestDetectorBaseline(t *testing.T) {
	d := calibrated(t)
	b := d.Baseline()
	if diff := b.Ay - rest.Accel[1]; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("baseline ay = %v, want %v", b.Ay, rest.Accel[1])
	}
	if diff := b.Gz - rest.Gyro[2]; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("baseline gz = %v, want %v", b.Gz, rest.Gyro[2])
	}
}

func TestDetectorSwipe(t *testing.T) {
	cases := []struct {
		name string
		gz   float64
		want Kind
	}{
		{"up", 200, SwipeUp},
		{"down", -200, SwipeDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := calibrated(t)
			kind, ok := d.Feed(swipeSample(tc.gz))
			if !ok {
				t.Fatal("no gesture detected")
			}
			if kind != tc.want {
				t.Errorf("got %s, want %s", kind, tc.want)
			}
		})
	}
}

func TestDetectorTwist(t *testing.T) {
	cases := []struct {
		name string
		gx   float64
		want Kind
	}{
		{"left", 600, TwistLeft},
		{"right", -600, TwistRight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := calibrated(t)
			kind, ok := d.Feed(twistSample(tc.gx, 1.0))
			if !ok {
				t.Fatal("no gesture detected")
			}
			if kind != tc.want {
				t.Errorf("got %s, want %s", kind, tc.want)
			}
		})
	}
}

func TestDetectorRestIsQuiet(t *testing.T) {
	d := calibrated(t)
	for i := 0; i < 200; i++ {
		if kind, ok := d.Feed(rest); ok {
			t.Fatalf("spurious %s at rest", kind)
		}
	}
}

func TestDetectorCooldownAndRecalibration(t *testing.T) {
	now := time.Unix(1000, 0)
	d := NewDetector()
	d.now = func() time.Time { return now }

	for i := 0; i < BaselineSamples; i++ {
		d.Feed(rest)
	}
	if _, ok := d.Feed(swipeSample(200)); !ok {
		t.Fatal("first swipe not detected")
	}

	// Inside the cooldown window nothing is consumed, not even calibration.
	now = now.Add(Cooldown / 2)
	if _, ok := d.Feed(swipeSample(200)); ok {
		t.Fatal("gesture fired during cooldown")
	}
	if d.Armed() {
		t.Fatal("detector should require recalibration after a gesture")
	}

	// After the cooldown a fresh baseline is collected, then detection resumes.
	now = now.Add(Cooldown)
	for i := 0; i < BaselineSamples; i++ {
		d.Feed(rest)
	}
	kind, ok := d.Feed(swipeSample(-200))
	if !ok {
		t.Fatal("swipe not detected after recalibration")
	}
	if kind != SwipeDown {
		t.Errorf("got %s, want %s", kind, SwipeDown)
	}
}

func TestDetectorDisabled(t *testing.T) {
	d := calibrated(t)
	d.SetEnabled(false)
	if _, ok := d.Feed(swipeSample(200)); ok {
		t.Fatal("gesture fired while disabled")
	}
	d.SetEnabled(true)
	if _, ok := d.Feed(swipeSample(200)); !ok {
		t.Fatal("gesture not detected after re-enable")
	}
}

func TestClassifyTwistBeatsSwipe(t *testing.T) {
	// A sample exceeding both twist and swipe thresholds must classify as
	// twist: gx dominance is checked first.
	s := rest
	s.Gyro[0] = 600
	s.Accel[1] = rest.Accel[1] + 1.0
	s.Gyro[2] = rest.Gyro[2] + 200

	kind, ok := classify(s, Baseline{Ay: rest.Accel[1], Gz: rest.Gyro[2]})
	if !ok {
		t.Fatal("no classification")
	}
	if kind != TwistLeft {
		t.Errorf("got %s, want %s", kind, TwistLeft)
	}
}
