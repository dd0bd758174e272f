package agent

import (
	"context"
	"fmt"
	"os/exec"

	"airwave/internal/logging"
	"airwave/internal/spotify"
	"airwave/internal/tracking"
)

// Player is pi2's handle on music playback.
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
}

// ChainPlayer tries the Spotify Web API first and falls back to the local
// media player when Spotify is unconfigured or fails. Volume goes to the
// local output either way, with the Spotify app volume kept aligned
// best-effort.
type ChainPlayer struct {
	spotify *spotify.Client // nil when unconfigured
	local   Player
	log     *logging.Logger
}

// NewChainPlayer builds the playback chain. Either argument may be nil.
func NewChainPlayer(sp *spotify.Client, local Player) *ChainPlayer {
	return &ChainPlayer{
		spotify: sp,
		local:   local,
		log:     logging.Get(logging.CategorySpotify),
	}
}

func (c *ChainPlayer) do(ctx context.Context, op string, remote func(context.Context) error, local func(context.Context) error) error {
	if c.spotify != nil {
		if err := remote(ctx); err == nil {
			return nil
		} else {
			c.log.Debug("spotify %s failed, trying local player: %v", op, err)
		}
	}
	if c.local == nil {
		return fmt.Errorf("%s: no player available", op)
	}
	return local(ctx)
}

func (c *ChainPlayer) Play(ctx context.Context) error {
	return c.do(ctx, "play", func(ctx context.Context) error { return c.spotify.Play(ctx) },
		func(ctx context.Context) error { return c.local.Play(ctx) })
}

func (c *ChainPlayer) Pause(ctx context.Context) error {
	return c.do(ctx, "pause", func(ctx context.Context) error { return c.spotify.Pause(ctx) },
		func(ctx context.Context) error { return c.local.Pause(ctx) })
}

func (c *ChainPlayer) Next(ctx context.Context) error {
	return c.do(ctx, "next", func(ctx context.Context) error { return c.spotify.NextTrack(ctx) },
		func(ctx context.Context) error { return c.local.Next(ctx) })
}

func (c *ChainPlayer) Previous(ctx context.Context) error {
	return c.do(ctx, "previous", func(ctx context.Context) error { return c.spotify.PreviousTrack(ctx) },
		func(ctx context.Context) error { return c.local.Previous(ctx) })
}

func (c *ChainPlayer) SetVolume(ctx context.Context, percent int) error {
	var err error
	if c.local != nil {
		err = c.local.SetVolume(ctx, percent)
	}
	if c.spotify != nil {
		// Keep the app volume aligned with the physical output.
		if serr := c.spotify.SetVolume(ctx, percent); serr != nil {
			c.log.Debug("spotify volume align failed: %v", serr)
		}
	}
	return err
}

// ExecPlayer controls the local player with playerctl and the bluetooth
// ALSA mixer, the tooling present on the Pi image.
type ExecPlayer struct {
	log *logging.Logger

	// run is swapped in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewExecPlayer builds the local player bridge.
func NewExecPlayer() *ExecPlayer {
	return &ExecPlayer{
		log: logging.Get(logging.CategoryTracking),
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (p *ExecPlayer) Play(ctx context.Context) error {
	return p.run(ctx, "playerctl", "play")
}

func (p *ExecPlayer) Pause(ctx context.Context) error {
	return p.run(ctx, "playerctl", "pause")
}

func (p *ExecPlayer) Next(ctx context.Context) error {
	return p.run(ctx, "playerctl", "next")
}

func (p *ExecPlayer) Previous(ctx context.Context) error {
	return p.run(ctx, "playerctl", "previous")
}

// SetVolume maps the linear 0-100 level through the perceptual curve so a
// 50% request sounds like half volume on the bluetooth speaker.
func (p *ExecPlayer) SetVolume(ctx context.Context, percent int) error {
	actual := tracking.PerceptualLevel(percent)
	p.log.Debug("amixer volume %d%% (perceptual %d%%)", percent, actual)
	return p.run(ctx, "amixer", "-D", "bluealsa", "sset", "Master", fmt.Sprintf("%d%%", actual))
}
