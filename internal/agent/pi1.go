// Package agent implements the runtimes the launcher runs on each
// Raspberry Pi: pi1 turns IMU motion and speech into gesture events, pi2
// follows a person with the camera and keeps volume and music in step.
package agent

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"airwave/internal/bus"
	"airwave/internal/gesture"
	"airwave/internal/logging"
	"airwave/internal/voice"
)

// fabric is the slice of the bus the agents need. Satisfied by *bus.Bus.
type fabric interface {
	Publish(topic string, v interface{}) error
	PublishGesture(bus.GestureEvent) error
	PublishMood(bus.MoodEvent) error
	OnGesture(fn func(bus.GestureEvent))
	OnCommand(topic string, fn func(bus.Command))
}

// Transcripts supplies recognized speech, one utterance per line.
type Transcripts interface {
	Lines(ctx context.Context) (<-chan string, error)
}

// ChanTranscripts adapts a plain channel, used by tests and the offline
// recognizer bridge.
type ChanTranscripts <-chan string

func (c ChanTranscripts) Lines(ctx context.Context) (<-chan string, error) {
	return c, nil
}

// LineTranscripts reads utterances line by line from r, typically the stdout
// of a speech recognizer piped into the agent.
func LineTranscripts(r io.Reader) Transcripts {
	return readerTranscripts{r}
}

type readerTranscripts struct {
	r io.Reader
}

func (t readerTranscripts) Lines(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	sc := bufio.NewScanner(t.r)
	go func() {
		defer close(out)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

const flashDuration = 200 * time.Millisecond

// Pi1 is the gesture sensor agent.
type Pi1 struct {
	bus fabric
	imu gesture.Source
	stt Transcripts
	led LED
	det *gesture.Detector
	log *logging.Logger

	mu             sync.Mutex
	ledEnabled     bool
	gestureEnabled bool
	voiceEnabled   bool
}

// NewPi1 wires the gesture sensor agent. imu and stt may each be nil when
// the hardware is absent; the agent then runs voice-only or gesture-only.
func NewPi1(b fabric, imu gesture.Source, stt Transcripts, led LED) *Pi1 {
	if led == nil {
		led = NewSimLED()
	}
	return &Pi1{
		bus:            b,
		imu:            imu,
		stt:            stt,
		led:            led,
		det:            gesture.NewDetector(),
		log:            logging.Get(logging.CategoryGesture),
		ledEnabled:     true,
		gestureEnabled: true,
		voiceEnabled:   true,
	}
}

// Run processes IMU samples and transcripts until ctx is cancelled. The
// offline status is published on the way out.
func (p *Pi1) Run(ctx context.Context) error {
	p.bus.OnCommand(bus.TopicPi1Commands, p.handleCommand)
	p.publishStatus("online")
	defer p.publishStatus("offline")

	var samples <-chan gesture.Sample
	if p.imu != nil {
		var err error
		if samples, err = p.imu.Samples(ctx); err != nil {
			return err
		}
	}

	var lines <-chan string
	if p.stt != nil {
		var err error
		if lines, err = p.stt.Lines(ctx); err != nil {
			p.log.Warn("voice input unavailable: %v", err)
			lines = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			p.feedSample(s)
		case text, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			p.feedTranscript(text)
		}
	}
}

func (p *Pi1) feedSample(s gesture.Sample) {
	kind, ok := p.det.Feed(s)
	if !ok {
		return
	}

	p.mu.Lock()
	enabled := p.gestureEnabled
	ledOn := p.ledEnabled
	p.mu.Unlock()
	if !enabled {
		return
	}

	p.log.Info("gesture detected: %s", kind)
	if err := p.bus.PublishGesture(bus.NewGestureEvent(string(kind), bus.SourceGesture, "pi1")); err != nil {
		p.log.Error("publish gesture: %v", err)
	}
	if ledOn {
		p.led.Flash(ColorGesture, flashDuration)
	}
}

func (p *Pi1) feedTranscript(text string) {
	p.mu.Lock()
	enabled := p.voiceEnabled
	ledOn := p.ledEnabled
	p.mu.Unlock()
	if !enabled {
		return
	}

	cmd, ok := voice.Map(text)
	if !ok {
		p.log.Debug("unrecognized utterance: %q", text)
		return
	}

	p.log.Info("voice command: %s (%q)", cmd, text)
	if err := p.bus.PublishGesture(bus.NewGestureEvent(string(cmd), bus.SourceVoice, "pi1")); err != nil {
		p.log.Error("publish voice command: %v", err)
	}
	if ledOn {
		p.led.Flash(ColorVoice, flashDuration)
	}
}

func (p *Pi1) handleCommand(cmd bus.Command) {
	p.log.Debug("command: %s", cmd.Command)

	switch cmd.Command {
	case bus.CmdLEDFlash:
		if p.ledAllowed() {
			p.led.Flash(colorOrDefault(cmd.Color, ColorGesture), durationOrDefault(cmd.Duration))
		}
	case bus.CmdLEDSet:
		if p.ledAllowed() {
			p.led.Set(colorOrDefault(cmd.Color, Color{}))
		}
	case bus.CmdLEDOff:
		p.led.Off()
	case bus.CmdLEDVolume:
		if p.ledAllowed() {
			level := 50
			if cmd.Level != nil {
				level = *cmd.Level
			}
			p.led.VolumeBar(level)
		}
	case bus.CmdLEDEnable:
		p.mu.Lock()
		p.ledEnabled = boolOrDefault(cmd.Enabled, true)
		off := !p.ledEnabled
		p.mu.Unlock()
		if off {
			p.led.Off()
		}
	case bus.CmdGestureEnable:
		p.mu.Lock()
		p.gestureEnabled = boolOrDefault(cmd.Enabled, true)
		p.mu.Unlock()
	case bus.CmdVoiceEnable:
		p.mu.Lock()
		p.voiceEnabled = boolOrDefault(cmd.Enabled, true)
		p.mu.Unlock()
	case bus.CmdStatus:
		p.publishStatus("online")
	}
}

func (p *Pi1) ledAllowed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledEnabled
}

func (p *Pi1) publishStatus(status string) {
	p.mu.Lock()
	st := bus.Pi1Status{
		Status:         status,
		LEDEnabled:     p.ledEnabled,
		GestureEnabled: p.gestureEnabled,
		VoiceEnabled:   p.voiceEnabled,
		Timestamp:      float64(time.Now().UnixNano()) / float64(time.Second),
	}
	p.mu.Unlock()

	if err := p.bus.Publish(bus.TopicPi1Status, st); err != nil {
		p.log.Error("publish status: %v", err)
	}
}

func colorOrDefault(c []int, def Color) Color {
	if len(c) != 3 {
		return def
	}
	return Color{c[0], c[1], c[2]}
}

func durationOrDefault(seconds float64) time.Duration {
	if seconds <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(seconds * float64(time.Second))
}

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
