package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"airwave/internal/logging"
	"airwave/internal/mood"
	"airwave/internal/tracking"
)

// Frame is one processed camera frame. Face is nil when no face was found;
// Metrics is set only when landmark extraction succeeded.
type Frame struct {
	Face    *tracking.Box
	Metrics *mood.FaceMetrics
	Width   int
	Height  int
}

// Camera produces a stream of processed frames. The channel closes when the
// context is cancelled or the capture device fails.
type Camera interface {
	Frames(ctx context.Context) (<-chan Frame, error)
}

// ChanCamera adapts a plain channel into a Camera, for feeding frames from
// another goroutine.
type ChanCamera struct {
	C chan Frame
}

func (c *ChanCamera) Frames(ctx context.Context) (<-chan Frame, error) {
	out := make(chan Frame)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-c.C:
				if !ok {
					return
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ReaderCamera decodes frames from a JSON-lines stream, the output format of
// the vision helper process that owns the camera and the face models. One
// object per line; lines that fail to decode are dropped.
type ReaderCamera struct {
	R io.Reader
}

type frameWire struct {
	Face *struct {
		X int `json:"x"`
		Y int `json:"y"`
		W int `json:"w"`
		H int `json:"h"`
	} `json:"face"`
	Metrics *struct {
		Smile      bool    `json:"smile"`
		Eyes       int     `json:"eyes"`
		Brightness float64 `json:"brightness"`
		Contrast   float64 `json:"contrast"`
		Warmth     float64 `json:"warmth"`
	} `json:"metrics"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c *ReaderCamera) Frames(ctx context.Context) (<-chan Frame, error) {
	log := logging.Get(logging.CategoryTracking)
	out := make(chan Frame)
	sc := bufio.NewScanner(c.R)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	go func() {
		defer close(out)
		for sc.Scan() {
			var w frameWire
			if err := json.Unmarshal(sc.Bytes(), &w); err != nil {
				log.Debug("bad frame line: %v", err)
				continue
			}
			f := Frame{Width: w.Width, Height: w.Height}
			if w.Face != nil {
				f.Face = &tracking.Box{X: w.Face.X, Y: w.Face.Y, W: w.Face.W, H: w.Face.H}
			}
			if w.Metrics != nil {
				f.Metrics = &mood.FaceMetrics{
					Smile:      w.Metrics.Smile,
					Eyes:       w.Metrics.Eyes,
					Brightness: w.Metrics.Brightness,
					Contrast:   w.Metrics.Contrast,
					Warmth:     w.Metrics.Warmth,
				}
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
