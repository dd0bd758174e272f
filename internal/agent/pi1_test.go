package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwave/internal/bus"
	"airwave/internal/gesture"
	"airwave/internal/voice"
)

type published struct {
	topic   string
	payload interface{}
}

// fakeFabric satisfies the bus slice the agents use and records all traffic.
type fakeFabric struct {
	mu        sync.Mutex
	published []published
	gestures  []bus.GestureEvent
	moods     []bus.MoodEvent
	cmdFns    map[string]func(bus.Command)
	gestFn    func(bus.GestureEvent)
}

func newFakeFabric() *fakeFabric {
	return &fakeFabric{cmdFns: make(map[string]func(bus.Command))}
}

func (f *fakeFabric) Publish(topic string, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, v})
	return nil
}

func (f *fakeFabric) PublishGesture(e bus.GestureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestures = append(f.gestures, e)
	return nil
}

func (f *fakeFabric) PublishMood(e bus.MoodEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moods = append(f.moods, e)
	return nil
}

func (f *fakeFabric) OnGesture(fn func(bus.GestureEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestFn = fn
}

func (f *fakeFabric) OnCommand(topic string, fn func(bus.Command)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmdFns[topic] = fn
}

func (f *fakeFabric) gestureEvents() []bus.GestureEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.GestureEvent(nil), f.gestures...)
}

func (f *fakeFabric) moodEvents() []bus.MoodEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.MoodEvent(nil), f.moods...)
}

func (f *fakeFabric) statuses(topic string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interface{}
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

func (f *fakeFabric) commandFn(topic string) func(bus.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdFns[topic]
}

type chanSource chan gesture.Sample

func (c chanSource) Samples(ctx context.Context) (<-chan gesture.Sample, error) {
	return c, nil
}

// armDetector feeds resting samples until the baseline is established.
func armDetector(p *Pi1) {
	for i := 0; i < gesture.BaselineSamples; i++ {
		p.feedSample(gesture.Sample{})
	}
}

func swipeUpSample() gesture.Sample {
	return gesture.Sample{Gyro: [3]float64{0, 0, 300}}
}

func TestPi1PublishesDetectedGesture(t *testing.T) {
	f := newFakeFabric()
	led := NewSimLED()
	p := NewPi1(f, nil, nil, led)

	armDetector(p)
	p.feedSample(swipeUpSample())

	events := f.gestureEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "SWIPE_UP", events[0].Type)
	assert.Equal(t, bus.SourceGesture, events[0].Source)
	assert.Equal(t, "pi1", events[0].Device)
	assert.NotEmpty(t, events[0].ID)
	assert.Greater(t, events[0].Timestamp, 0.0)

	color, lit := led.State()
	assert.True(t, lit)
	assert.Equal(t, ColorGesture, color)
}

func TestPi1PublishesVoiceCommand(t *testing.T) {
	f := newFakeFabric()
	led := NewSimLED()
	p := NewPi1(f, nil, nil, led)

	p.feedTranscript("play the next song")

	events := f.gestureEvents()
	require.Len(t, events, 1)
	assert.Equal(t, string(voice.NextTrack), events[0].Type)
	assert.Equal(t, bus.SourceVoice, events[0].Source)

	color, _ := led.State()
	assert.Equal(t, ColorVoice, color)
}

func TestPi1IgnoresUnrecognizedSpeech(t *testing.T) {
	f := newFakeFabric()
	p := NewPi1(f, nil, nil, nil)

	p.feedTranscript("nice weather today")

	assert.Empty(t, f.gestureEvents())
}

func TestPi1VoiceDisableSuppressesPublish(t *testing.T) {
	f := newFakeFabric()
	p := NewPi1(f, nil, nil, nil)

	off := false
	p.handleCommand(bus.Command{Command: bus.CmdVoiceEnable, Enabled: &off})
	p.feedTranscript("next song")
	assert.Empty(t, f.gestureEvents())

	p.handleCommand(bus.Command{Command: bus.CmdVoiceEnable})
	p.feedTranscript("next song")
	assert.Len(t, f.gestureEvents(), 1)
}

func TestPi1GestureDisableSuppressesPublish(t *testing.T) {
	f := newFakeFabric()
	p := NewPi1(f, nil, nil, nil)

	off := false
	p.handleCommand(bus.Command{Command: bus.CmdGestureEnable, Enabled: &off})
	armDetector(p)
	p.feedSample(swipeUpSample())

	assert.Empty(t, f.gestureEvents())
}

func TestPi1LEDCommands(t *testing.T) {
	f := newFakeFabric()
	led := NewSimLED()
	p := NewPi1(f, nil, nil, led)

	p.handleCommand(bus.Command{Command: bus.CmdLEDSet, Color: []int{255, 0, 0}})
	color, lit := led.State()
	assert.True(t, lit)
	assert.Equal(t, Color{255, 0, 0}, color)

	level := 70
	p.handleCommand(bus.Command{Command: bus.CmdLEDVolume, Level: &level})
	assert.Equal(t, 70, led.Level())

	p.handleCommand(bus.Command{Command: bus.CmdLEDOff})
	_, lit = led.State()
	assert.False(t, lit)

	// Disabling the ring turns it off and gates later writes.
	p.handleCommand(bus.Command{Command: bus.CmdLEDSet, Color: []int{0, 255, 255}})
	off := false
	p.handleCommand(bus.Command{Command: bus.CmdLEDEnable, Enabled: &off})
	_, lit = led.State()
	assert.False(t, lit)

	p.handleCommand(bus.Command{Command: bus.CmdLEDSet, Color: []int{1, 2, 3}})
	_, lit = led.State()
	assert.False(t, lit)
}

func TestPi1StatusReflectsToggles(t *testing.T) {
	f := newFakeFabric()
	p := NewPi1(f, nil, nil, nil)

	off := false
	p.handleCommand(bus.Command{Command: bus.CmdGestureEnable, Enabled: &off})
	p.handleCommand(bus.Command{Command: bus.CmdStatus})

	statuses := f.statuses(bus.TopicPi1Status)
	require.NotEmpty(t, statuses)
	st, ok := statuses[len(statuses)-1].(bus.Pi1Status)
	require.True(t, ok)
	assert.Equal(t, "online", st.Status)
	assert.False(t, st.GestureEnabled)
	assert.True(t, st.VoiceEnabled)
	assert.True(t, st.LEDEnabled)
}

func TestPi1VoiceOnlyWithoutIMU(t *testing.T) {
	f := newFakeFabric()
	lines := make(chan string)
	p := NewPi1(f, nil, ChanTranscripts(lines), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case lines <- "pause":
	case <-time.After(2 * time.Second):
		t.Fatal("run loop never consumed the transcript")
	}

	require.Eventually(t, func() bool {
		return len(f.gestureEvents()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "PAUSE", f.gestureEvents()[0].Type)

	cancel()
	require.NoError(t, <-done)
}

func TestPi1VoiceSurvivesIMUStreamEnd(t *testing.T) {
	f := newFakeFabric()
	imu := make(chanSource)
	lines := make(chan string)
	p := NewPi1(f, imu, ChanTranscripts(lines), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	close(imu)

	// Voice keeps working after the sensor stream goes away.
	select {
	case lines <- "next":
	case <-time.After(2 * time.Second):
		t.Fatal("run loop stopped consuming transcripts")
	}

	require.Eventually(t, func() bool {
		return len(f.gestureEvents()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestPi1RunLifecycle(t *testing.T) {
	f := newFakeFabric()
	imu := make(chanSource)
	lines := make(chan string)
	p := NewPi1(f, imu, ChanTranscripts(lines), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case lines <- "skip this track":
	case <-time.After(2 * time.Second):
		t.Fatal("run loop never consumed the transcript")
	}

	require.Eventually(t, func() bool {
		return len(f.gestureEvents()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}

	statuses := f.statuses(bus.TopicPi1Status)
	require.Len(t, statuses, 2)
	assert.Equal(t, "online", statuses[0].(bus.Pi1Status).Status)
	assert.Equal(t, "offline", statuses[1].(bus.Pi1Status).Status)
}
