package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"airwave/internal/bus"
	"airwave/internal/config"
	"airwave/internal/remote"
)

var statusTimeout time.Duration

// statusCmd asks both agents for a live status report.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show broker and agent status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "How long to wait for agent replies")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("AirWave status"))

	if remote.Probe(cfg.MQTTBroker, config.MQTTPort, 2*time.Second) {
		fmt.Printf("%s broker %s:%d\n", okStyle.Render("✓"), cfg.MQTTBroker, config.MQTTPort)
	} else {
		fmt.Printf("%s broker %s:%d unreachable\n", errStyle.Render("✗"), cfg.MQTTBroker, config.MQTTPort)
		return nil
	}

	for _, pi := range []struct {
		name string
		cfg  config.PiConfig
	}{
		{"pi1", cfg.Pi1},
		{"pi2", cfg.Pi2},
	} {
		if !pi.cfg.Enabled() {
			fmt.Printf("%s %s not configured\n", dimStyle.Render("-"), pi.name)
			continue
		}
		if remote.Probe(pi.cfg.Host, remote.DefaultPort, 2*time.Second) {
			fmt.Printf("%s %s host %s\n", okStyle.Render("✓"), pi.name, pi.cfg.Addr())
		} else {
			fmt.Printf("%s %s host %s unreachable\n", errStyle.Render("✗"), pi.name, pi.cfg.Addr())
		}
	}

	b, err := bus.New(bus.Options{Broker: cfg.MQTTBroker})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetMQTTConnectTimeout())
	err = b.Connect(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect MQTT: %w", err)
	}
	defer b.Close()

	pi1 := make(chan bus.Pi1Status, 1)
	pi2 := make(chan bus.Pi2Status, 1)
	b.OnPi1Status(func(s bus.Pi1Status) {
		select {
		case pi1 <- s:
		default:
		}
	})
	b.OnPi2Status(func(s bus.Pi2Status) {
		select {
		case pi2 <- s:
		default:
		}
	})

	for _, topic := range []string{bus.TopicPi1Commands, bus.TopicPi2Commands} {
		if err := b.Publish(topic, bus.Command{Command: bus.CmdStatus}); err != nil {
			return err
		}
	}

	deadline := time.After(statusTimeout)
	got1, got2 := false, false
	for !(got1 && got2) {
		select {
		case s := <-pi1:
			got1 = true
			fmt.Printf("%s pi1  led=%v gestures=%v voice=%v\n",
				okStyle.Render("✓"), s.LEDEnabled, s.GestureEnabled, s.VoiceEnabled)
		case s := <-pi2:
			got2 = true
			fmt.Printf("%s pi2  volume=%d%% distance=%.1fft tracking=%v mood=%s\n",
				okStyle.Render("✓"), s.Volume, s.DistanceFt, s.IsTracking, s.Mood)
		case <-deadline:
			if !got1 {
				fmt.Println(warnStyle.Render("? ") + "pi1 did not answer")
			}
			if !got2 {
				fmt.Println(warnStyle.Render("? ") + "pi2 did not answer")
			}
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
	return nil
}
