package gesture

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source delivers decoded IMU samples. Implementations wrap whatever transport
// the sensor is reachable over; the detector does not care.
type Source interface {
	// Samples streams readings until ctx is done or the underlying transport
	// fails. The channel is closed on return.
	Samples(ctx context.Context) (<-chan Sample, error)
}

// StreamSource frames and decodes raw sensor bytes from an io.Reader, e.g. a
// serial device node or a recorded capture file.
type StreamSource struct {
	R io.Reader

	// Buffer controls the sample channel depth. Zero means 500, matching the
	// queue the detector was tuned against.
	Buffer int
}

// Samples implements Source.
func (s *StreamSource) Samples(ctx context.Context) (<-chan Sample, error) {
	if s.R == nil {
		return nil, fmt.Errorf("stream source: nil reader")
	}

	depth := s.Buffer
	if depth == 0 {
		depth = 500
	}
	out := make(chan Sample, depth)

	go func() {
		defer close(out)
		var split Splitter
		buf := make([]byte, 512)
		for {
			n, err := s.R.Read(buf)
			if n > 0 {
				for _, frame := range split.Push(buf[:n]) {
					sample, ok := Decode(frame)
					if !ok {
						continue
					}
					select {
					case out <- sample:
					case <-ctx.Done():
						return
					default:
						// Drop when the consumer lags; stale motion data is
						// worse than none.
					}
				}
			}
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return out, nil
}

// ReplaySource reads a capture file produced by the sensor logger.
type ReplaySource struct {
	Path string
}

// Samples implements Source.
func (s *ReplaySource) Samples(ctx context.Context) (<-chan Sample, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	out := make(chan Sample)
	go func() {
		defer f.Close()
		defer close(out)
		var split Splitter
		buf := make([]byte, 4096)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				for _, frame := range split.Push(buf[:n]) {
					sample, ok := Decode(frame)
					if !ok {
						continue
					}
					select {
					case out <- sample:
					case <-ctx.Done():
						return
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out, nil
}
