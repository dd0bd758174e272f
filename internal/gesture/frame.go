// Package gesture implements the IMU gesture pipeline: framing and decoding of
// WT901 sensor packets, baseline calibration, and swipe/twist classification.
package gesture

import "encoding/binary"

const (
	frameLen    = 20
	frameHeader = 0x55
	flagMotion  = 0x61
)

// Scale factors for the WT901 16-bit registers.
const (
	accelFullScaleG   = 16.0
	gyroFullScaleDPS  = 2000.0
	angleFullScaleDeg = 180.0
)

// Sample is one decoded motion reading.
type Sample struct {
	Accel [3]float64 // g
	Gyro  [3]float64 // deg/s
	Angle [3]float64 // roll/pitch/yaw, deg
}

// Splitter extracts complete 20-byte frames from a byte stream, keeping any
// partial tail for the next read. Bytes before a header are discarded.
type Splitter struct {
	buf []byte
}

// Push appends stream bytes and returns all complete frames found.
func (s *Splitter) Push(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	var frames [][]byte
	i := 0
	for i+frameLen <= len(s.buf) {
		if s.buf[i] != frameHeader {
			i++
			continue
		}
		frame := make([]byte, frameLen)
		copy(frame, s.buf[i:i+frameLen])
		frames = append(frames, frame)
		i += frameLen
	}
	s.buf = s.buf[:copy(s.buf, s.buf[i:])]
	return frames
}

// Pending reports how many bytes are buffered awaiting a complete frame.
func (s *Splitter) Pending() int { return len(s.buf) }

// Decode converts a 20-byte motion frame (flag 0x61) into a Sample.
// Frames with other flags decode to false.
func Decode(frame []byte) (Sample, bool) {
	if len(frame) != frameLen || frame[0] != frameHeader || frame[1] != flagMotion {
		return Sample{}, false
	}

	var raw [9]int16
	for i := range raw {
		raw[i] = int16(binary.LittleEndian.Uint16(frame[2+2*i:]))
	}

	var s Sample
	for i := 0; i < 3; i++ {
		s.Accel[i] = float64(raw[i]) / 32768.0 * accelFullScaleG
		s.Gyro[i] = float64(raw[3+i]) / 32768.0 * gyroFullScaleDPS
		s.Angle[i] = float64(raw[6+i]) / 32768.0 * angleFullScaleDeg
	}
	return s, true
}

// RawAccelToG converts a raw 16-bit accelerometer value to g.
func RawAccelToG(raw int) float64 { return float64(raw) / 32768.0 * accelFullScaleG }

// RawGyroToDPS converts a raw 16-bit gyro value to deg/s.
func RawGyroToDPS(raw int) float64 { return float64(raw) / 32768.0 * gyroFullScaleDPS }
