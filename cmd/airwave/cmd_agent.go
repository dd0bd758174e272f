package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"airwave/internal/agent"
	"airwave/internal/bus"
	"airwave/internal/config"
	"airwave/internal/gesture"
	"airwave/internal/mood"
	"airwave/internal/spotify"
	"airwave/internal/voice"
)

var (
	agentBroker   string
	imuDevice     string
	imuReplay     string
	framesPath    string
	playlistsPath string
)

// agentCmd hosts the runtimes that execute on the Pis themselves.
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a Pi agent (executed on the Pi, not the Mac)",
}

var agentPi1Cmd = &cobra.Command{
	Use:   "pi1",
	Short: "Run the gesture sensor agent",
	Long: `Reads the wrist IMU from a serial device (or a recorded capture with
--replay) and voice transcripts from stdin, publishing gesture events over
MQTT. The broker comes from --broker or the MQTT_BROKER environment variable
the launcher passes over SSH.`,
	RunE: runAgentPi1,
}

var agentPi2Cmd = &cobra.Command{
	Use:   "pi2",
	Short: "Run the speaker tracking agent",
	Long: `Consumes face frames from the vision helper (JSON lines on stdin or
--frames), steers the gimbal, matches volume to distance, and relays playback
gestures to Spotify with a playerctl fallback.`,
	RunE: runAgentPi2,
}

func init() {
	agentCmd.PersistentFlags().StringVar(&agentBroker, "broker", os.Getenv("MQTT_BROKER"), "MQTT broker host")
	agentPi1Cmd.Flags().StringVar(&imuDevice, "imu-device", "/dev/ttyUSB0", "IMU serial device node ('none' to run voice-only)")
	agentPi1Cmd.Flags().StringVar(&imuReplay, "replay", "", "Replay a recorded IMU capture instead of the device")
	agentPi2Cmd.Flags().StringVar(&framesPath, "frames", "-", "Face frame stream ('-' for stdin)")
	agentPi2Cmd.Flags().StringVar(&playlistsPath, "playlists", "", "Mood playlist catalog (default: .airwave/playlists.yaml beside the config)")

	agentCmd.AddCommand(agentPi1Cmd)
	agentCmd.AddCommand(agentPi2Cmd)
}

func connectAgentBus(cmd *cobra.Command, willTopic string, willPayload interface{}) (*bus.Bus, error) {
	if agentBroker == "" {
		return nil, fmt.Errorf("no broker: pass --broker or set MQTT_BROKER")
	}
	b, err := bus.New(bus.Options{
		Broker:      agentBroker,
		WillTopic:   willTopic,
		WillPayload: willPayload,
	})
	if err != nil {
		return nil, err
	}
	if err := b.Connect(cmd.Context()); err != nil {
		return nil, fmt.Errorf("connect MQTT: %w", err)
	}
	return b, nil
}

func runAgentPi1(cmd *cobra.Command, args []string) error {
	b, err := connectAgentBus(cmd, bus.TopicPi1Status, bus.Pi1Status{Status: "offline"})
	if err != nil {
		return err
	}
	defer b.Close()

	var imu gesture.Source
	switch {
	case imuReplay != "":
		imu = &gesture.ReplaySource{Path: imuReplay}
	case imuDevice == "" || imuDevice == "none":
		// Voice-only mode, used when the agent runs on a machine without
		// the wrist sensor attached.
	default:
		f, err := os.Open(imuDevice)
		if err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render("! ")+"IMU unavailable, running voice-only: "+err.Error())
		} else {
			defer f.Close()
			imu = &gesture.StreamSource{R: f}
		}
	}

	// Transcripts arrive on stdin, one utterance per line, from whatever
	// recognizer is wired in front of us.
	stt := agent.LineTranscripts(os.Stdin)
	fmt.Fprintln(os.Stderr, dimStyle.Render("voice grammar: "+strings.Join(voice.Phrases(), ", ")))

	return agent.NewPi1(b, imu, stt, nil).Run(cmd.Context())
}

func runAgentPi2(cmd *cobra.Command, args []string) error {
	b, err := connectAgentBus(cmd, bus.TopicPi2Status, bus.Pi2Status{Status: "offline"})
	if err != nil {
		return err
	}
	defer b.Close()

	// Only the Spotify credentials matter here; they come from the
	// environment when no config file exists on the Pi.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var cam agent.Camera
	if framesPath == "-" {
		cam = &agent.ReaderCamera{R: os.Stdin}
	} else {
		f, err := os.Open(framesPath)
		if err != nil {
			return fmt.Errorf("open frame stream: %w", err)
		}
		defer f.Close()
		cam = &agent.ReaderCamera{R: f}
	}

	var sp *spotify.Client
	creds := spotify.Credentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
	}
	if creds.Configured() {
		sp = spotify.New(creds)
		if err := sp.Warmup(cmd.Context()); err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render("! ")+"spotify unavailable: "+err.Error())
			sp = nil
		}
	}
	player := agent.NewChainPlayer(sp, agent.NewExecPlayer())

	catalog, err := mood.LoadCatalog(catalogPath())
	if err != nil {
		return err
	}

	return agent.NewPi2(b, cam, player, nil, catalog).Run(cmd.Context())
}

// catalogPath resolves the mood playlist catalog: the --playlists flag when
// given, otherwise .airwave/playlists.yaml next to the config file. A
// missing file falls back to the built-in catalog inside LoadCatalog.
func catalogPath() string {
	if playlistsPath != "" {
		return playlistsPath
	}
	return filepath.Join(filepath.Dir(configPath), ".airwave", "playlists.yaml")
}
