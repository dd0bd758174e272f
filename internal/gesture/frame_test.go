package gesture

import (
	"encoding/binary"
	"math"
	"testing"
)

// encodeFrame builds a motion frame from raw register values.
func encodeFrame(raw [9]int16) []byte {
	frame := make([]byte, frameLen)
	frame[0] = frameHeader
	frame[1] = flagMotion
	for i, v := range raw {
		binary.LittleEndian.PutUint16(frame[2+2*i:], uint16(v))
	}
	return frame
}

func TestSplitterResync(t *testing.T) {
	frame := encodeFrame([9]int16{100, 200, 300, 0, 0, 0, 0, 0, 0})

	var s Splitter
	// Garbage before the header must be skipped.
	input := append([]byte{0x01, 0x02, 0x03}, frame...)
	frames := s.Push(input)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0][0] != frameHeader {
		t.Errorf("frame does not start with header: %#x", frames[0][0])
	}
}

func TestSplitterPartialFrame(t *testing.T) {
	frame := encodeFrame([9]int16{1, 2, 3, 4, 5, 6, 7, 8, 9})

	var s Splitter
	if frames := s.Push(frame[:12]); len(frames) != 0 {
		t.Fatalf("got %d frames from partial input", len(frames))
	}
	if s.Pending() != 12 {
		t.Errorf("expected 12 pending bytes, got %d", s.Pending())
	}

	frames := s.Push(frame[12:])
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after completion, got %d", len(frames))
	}
	if s.Pending() != 0 {
		t.Errorf("expected empty buffer, got %d pending", s.Pending())
	}
}

func TestSplitterBackToBackFrames(t *testing.T) {
	a := encodeFrame([9]int16{1, 0, 0, 0, 0, 0, 0, 0, 0})
	b := encodeFrame([9]int16{2, 0, 0, 0, 0, 0, 0, 0, 0})

	var s Splitter
	frames := s.Push(append(a, b...))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestDecodeScaling(t *testing.T) {
	// Full-scale positive on each group.
	frame := encodeFrame([9]int16{16384, -16384, 0, 16384, -16384, 0, 16384, -16384, 0})
	s, ok := Decode(frame)
	if !ok {
		t.Fatal("decode failed")
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"accel x", s.Accel[0], 8.0},
		{"accel y", s.Accel[1], -8.0},
		{"gyro x", s.Gyro[0], 1000.0},
		{"gyro y", s.Gyro[1], -1000.0},
		{"angle roll", s.Angle[0], 90.0},
		{"angle pitch", s.Angle[1], -90.0},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDecodeRejectsOtherFlags(t *testing.T) {
	frame := encodeFrame([9]int16{})
	frame[1] = 0x51 // raw accel report, not the fused motion flag
	if _, ok := Decode(frame); ok {
		t.Error("decoded frame with non-motion flag")
	}

	if _, ok := Decode(frame[:10]); ok {
		t.Error("decoded short frame")
	}
}
