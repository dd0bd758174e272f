package agent

import (
	"context"
	"time"

	"airwave/internal/bus"
	"airwave/internal/gesture"
	"airwave/internal/logging"
	"airwave/internal/mood"
	"airwave/internal/tracking"
	"airwave/internal/voice"
)

const (
	// maxLostFrames is how many faceless frames we tolerate before treating
	// the listener as gone and resetting the controller state.
	maxLostFrames = 45

	// moodCheckInterval gates how often a face is rescored, so the playlist
	// recommendation does not churn on every frame.
	moodCheckInterval = 15 * time.Second

	// statusEveryFrames is the frame interval between status publishes.
	statusEveryFrames = 30

	defaultTiltAngle = 0.0
)

// Gimbal drives the pan/tilt servos.
type Gimbal interface {
	Pan(deg float64) error
	Tilt(deg float64) error
}

// SimGimbal records the last commanded angles, for dry runs and tests.
type SimGimbal struct {
	PanDeg  float64
	TiltDeg float64
	log     *logging.Logger
}

func NewSimGimbal() *SimGimbal {
	return &SimGimbal{log: logging.Get(logging.CategoryTracking)}
}

func (g *SimGimbal) Pan(deg float64) error {
	g.PanDeg = deg
	g.log.Debug("sim pan %.1f", deg)
	return nil
}

func (g *SimGimbal) Tilt(deg float64) error {
	g.TiltDeg = deg
	g.log.Debug("sim tilt %.1f", deg)
	return nil
}

// Pi2 is the speaker-side agent: it follows the listener's face with the
// gimbal, sets volume from distance, scores mood, and executes playback
// gestures relayed from pi1.
type Pi2 struct {
	bus    fabric
	cam    Camera
	player Player
	gimbal Gimbal

	pan  *tracking.PanController
	dist *tracking.DistanceEstimator
	vol  *tracking.VolumePolicy

	catalog mood.Catalog
	log     *logging.Logger

	cmds chan bus.Command
	gest chan bus.GestureEvent

	trackingEnabled bool
	recalibrate     bool
	isTracking      bool
	lostFrames      int
	frameCount      int
	tiltAngle       float64
	lastMood        mood.Mood
	lastMoodCheck   time.Time
	lastVolume      int
}

// NewPi2 wires the agent. A nil gimbal gets the simulator.
func NewPi2(b fabric, cam Camera, player Player, gimbal Gimbal, catalog mood.Catalog) *Pi2 {
	if gimbal == nil {
		gimbal = NewSimGimbal()
	}
	if catalog == nil {
		catalog = mood.DefaultCatalog()
	}
	vol := tracking.NewVolumePolicy()
	return &Pi2{
		bus:     b,
		cam:     cam,
		player:  player,
		gimbal:  gimbal,
		pan:     tracking.NewPanController(tracking.DefaultPanConfig(), 0),
		dist:    tracking.NewDistanceEstimator(16000),
		vol:     vol,
		catalog: catalog,
		log:     logging.Get(logging.CategoryTracking),

		cmds: make(chan bus.Command, 16),
		gest: make(chan bus.GestureEvent, 16),

		trackingEnabled: true,
		tiltAngle:       defaultTiltAngle,
		lastMood:        mood.Neutral,
		lastVolume:      vol.Level(),
	}
}

// Run processes camera frames and bus traffic until the context is
// cancelled. If the frame stream ends the agent keeps serving commands
// and gestures without tracking.
func (p *Pi2) Run(ctx context.Context) error {
	frames, err := p.cam.Frames(ctx)
	if err != nil {
		return err
	}

	p.bus.OnCommand(bus.TopicPi2Commands, func(c bus.Command) {
		select {
		case p.cmds <- c:
		default:
			p.log.Debug("command queue full, dropping %s", c.Command)
		}
	})
	p.bus.OnGesture(func(e bus.GestureEvent) {
		select {
		case p.gest <- e:
		default:
			p.log.Debug("gesture queue full, dropping %s", e.Type)
		}
	})

	p.publishStatus("online")
	defer p.publishStatus("offline")

	if err := p.player.SetVolume(ctx, p.vol.Level()); err != nil {
		p.log.Debug("initial volume set failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-p.cmds:
			p.handleCommand(ctx, cmd)
		case ev := <-p.gest:
			p.handleGesture(ctx, ev)
		case f, ok := <-frames:
			if !ok {
				p.log.Warn("frame stream ended, running without camera")
				frames = nil
				continue
			}
			p.processFrame(ctx, f)
		}
	}
}

func (p *Pi2) processFrame(ctx context.Context, f Frame) {
	p.frameCount++

	if f.Face == nil {
		p.lostFrames++
		p.pan.Decay()
		if p.lostFrames > maxLostFrames && p.isTracking {
			p.isTracking = false
			p.pan.Reset()
			p.log.Info("target lost after %d frames", p.lostFrames)
		}
	} else {
		if !p.isTracking {
			p.log.Info("target acquired")
			p.pan.Reset()
		}
		p.isTracking = true
		p.lostFrames = 0

		if p.recalibrate {
			p.recalibrate = false
			p.dist.Recalibrate(f.Face.Area())
			p.log.Info("distance recalibrated, ref area %d", f.Face.Area())
		}

		if p.trackingEnabled {
			if angle, moved := p.pan.Update(f.Face.CenterX(), float64(f.Width)/2); moved {
				if err := p.gimbal.Pan(angle); err != nil {
					p.log.Debug("pan failed: %v", err)
				}
			}
		}

		ft := p.dist.Update(f.Face.Area())
		if level, changed := p.vol.AutoUpdate(ft); changed && level != p.lastVolume {
			p.applyVolume(ctx, level)
		}

		if f.Metrics != nil && time.Since(p.lastMoodCheck) >= moodCheckInterval {
			p.lastMoodCheck = time.Now()
			p.checkMood(*f.Metrics)
		}
	}

	if p.frameCount%statusEveryFrames == 0 {
		p.publishStatus("")
	}
}

func (p *Pi2) checkMood(m mood.FaceMetrics) {
	detected, confidence := mood.Classify(m)
	if detected == p.lastMood {
		return
	}
	p.lastMood = detected
	pl := p.catalog.Recommend(detected)
	p.log.Info("mood %s (%.0f%%), suggesting %q", detected, confidence, pl.Name)
	if err := p.bus.PublishMood(bus.NewMoodEvent(string(detected), pl.Name, pl.URL)); err != nil {
		p.log.Error("mood publish failed: %v", err)
	}
}

func (p *Pi2) handleGesture(ctx context.Context, ev bus.GestureEvent) {
	p.log.Debug("gesture %s from %s/%s", ev.Type, ev.Device, ev.Source)
	switch ev.Type {
	case string(gesture.SwipeUp), string(voice.VolUp):
		p.applyVolume(ctx, p.vol.Adjust(tracking.GestureVolumeStep))
	case string(gesture.SwipeDown), string(voice.VolDown):
		p.applyVolume(ctx, p.vol.Adjust(-tracking.GestureVolumeStep))
	case string(gesture.TwistRight), string(voice.NextTrack):
		if err := p.player.Next(ctx); err != nil {
			p.log.Error("next track failed: %v", err)
		}
	case string(gesture.TwistLeft), string(voice.PrevTrack):
		if err := p.player.Previous(ctx); err != nil {
			p.log.Error("previous track failed: %v", err)
		}
	case string(voice.Pause):
		if err := p.player.Pause(ctx); err != nil {
			p.log.Error("pause failed: %v", err)
		}
	case string(voice.Play):
		if err := p.player.Play(ctx); err != nil {
			p.log.Error("play failed: %v", err)
		}
	default:
		p.log.Debug("ignoring gesture %q", ev.Type)
	}
}

func (p *Pi2) handleCommand(ctx context.Context, cmd bus.Command) {
	p.log.Debug("command %s", cmd.Command)
	switch cmd.Command {
	case bus.CmdSetVolume:
		if cmd.Level != nil {
			p.applyVolume(ctx, p.vol.SetManual(*cmd.Level))
		}
	case bus.CmdTrackingEnable:
		p.trackingEnabled = boolOrDefault(cmd.Enabled, true)
		if !p.trackingEnabled {
			p.pan.Reset()
		}
		p.publishStatus("")
	case bus.CmdAutoVolumeEnable:
		p.vol.SetAuto(boolOrDefault(cmd.Enabled, true))
		p.publishStatus("")
	case bus.CmdPan:
		if cmd.Angle != nil {
			p.pan.SetAngle(*cmd.Angle)
			if err := p.gimbal.Pan(p.pan.Angle()); err != nil {
				p.log.Debug("pan failed: %v", err)
			}
		}
	case bus.CmdTilt:
		if cmd.Angle != nil {
			p.tiltAngle = *cmd.Angle
			if err := p.gimbal.Tilt(p.tiltAngle); err != nil {
				p.log.Debug("tilt failed: %v", err)
			}
		}
	case bus.CmdCenter:
		p.pan.SetAngle(0)
		p.tiltAngle = defaultTiltAngle
		if err := p.gimbal.Pan(0); err != nil {
			p.log.Debug("pan failed: %v", err)
		}
		if err := p.gimbal.Tilt(defaultTiltAngle); err != nil {
			p.log.Debug("tilt failed: %v", err)
		}
	case bus.CmdRecalibrate:
		// Applied on the next frame that has a face.
		p.recalibrate = true
	case bus.CmdStatus:
		p.publishStatus("")
	default:
		p.log.Debug("unknown command %q", cmd.Command)
	}
}

func (p *Pi2) applyVolume(ctx context.Context, level int) {
	p.lastVolume = level
	if err := p.player.SetVolume(ctx, level); err != nil {
		p.log.Error("volume %d failed: %v", level, err)
	}
}

func (p *Pi2) publishStatus(status string) {
	st := bus.Pi2Status{
		Status:            status,
		Volume:            p.vol.Level(),
		DistanceFt:        p.dist.Distance(),
		IsTracking:        p.isTracking,
		TrackingEnabled:   p.trackingEnabled,
		AutoVolumeEnabled: p.vol.AutoEnabled(),
		ManualOverride:    p.vol.Overridden(),
		PanAngle:          p.pan.Angle(),
		TiltAngle:         p.tiltAngle,
		Mood:              string(p.lastMood),
		Timestamp:         float64(time.Now().UnixNano()) / float64(time.Second),
	}
	if err := p.bus.Publish(bus.TopicPi2Status, st); err != nil {
		p.log.Error("status publish failed: %v", err)
	}
}
