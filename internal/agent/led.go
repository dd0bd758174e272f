package agent

import (
	"sync"
	"time"

	"airwave/internal/logging"
)

// Color is an RGB triple, 0-255 per channel.
type Color [3]int

var (
	ColorGesture = Color{0, 255, 0}
	ColorVoice   = Color{0, 0, 255}
)

// LED drives pi1's light ring. The real ring needs root and the neopixel
// kernel driver; everywhere else SimLED stands in, the same way the agent
// degrades when the hardware is absent.
type LED interface {
	Flash(c Color, d time.Duration)
	Set(c Color)
	Off()
	// VolumeBar lights a proportion of the ring for a 0-100 level.
	VolumeBar(level int)
}

// SimLED logs LED actions and remembers the last state.
type SimLED struct {
	log *logging.Logger

	mu    sync.Mutex
	color Color
	lit   bool
	level int
}

// NewSimLED builds a simulated LED ring.
func NewSimLED() *SimLED {
	return &SimLED{log: logging.Get(logging.CategoryGesture)}
}

func (l *SimLED) Flash(c Color, d time.Duration) {
	l.mu.Lock()
	l.color = c
	l.lit = true
	l.mu.Unlock()
	l.log.Debug("led flash %v for %s", c, d)

	time.AfterFunc(d, func() {
		l.mu.Lock()
		l.lit = false
		l.mu.Unlock()
	})
}

func (l *SimLED) Set(c Color) {
	l.mu.Lock()
	l.color = c
	l.lit = c != Color{}
	l.mu.Unlock()
	l.log.Debug("led set %v", c)
}

func (l *SimLED) Off() {
	l.mu.Lock()
	l.lit = false
	l.color = Color{}
	l.mu.Unlock()
	l.log.Debug("led off")
}

func (l *SimLED) VolumeBar(level int) {
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
	l.log.Debug("led volume bar %d%%", level)
}

// State reports the current color and whether any pixel is lit.
func (l *SimLED) State() (Color, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color, l.lit
}

// Level reports the last volume bar level.
func (l *SimLED) Level() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}
