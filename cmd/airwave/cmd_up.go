package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airwave/internal/bus"
	"airwave/internal/config"
	"airwave/internal/dashboard"
	"airwave/internal/launcher"
	"airwave/internal/logging"
	"airwave/internal/remote"
	"airwave/internal/store"
)

var (
	upDashboard bool
	upPi1       bool
	upPi2       bool
	upLocal     bool
)

// upCmd boots the whole rig: broker check, MQTT, dashboard, both Pi agents.
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Launch the dashboard and start the agents on both Pis",
	Long: `Starts the selected services. With no selection flags, everything
runs: the dashboard plus the agent on each configured Pi.

--local starts the agents as child processes of this machine instead of
over SSH, useful for a single-box demo without any Pis.`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().BoolVar(&upDashboard, "dashboard", false, "Run only the dashboard (combinable with --pi1/--pi2)")
	upCmd.Flags().BoolVar(&upPi1, "pi1", false, "Run only the pi1 agent (combinable)")
	upCmd.Flags().BoolVar(&upPi2, "pi2", false, "Run only the pi2 agent (combinable)")
	upCmd.Flags().BoolVar(&upLocal, "local", false, "Run agents locally instead of over SSH")
}

var componentStyles = map[string]lipgloss.Style{
	"pi1": lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
	"pi2": lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.Get(logging.CategoryLauncher)

	fmt.Println(titleStyle.Render("AirWave"))

	firstRun := !config.Exists(configPath)
	if firstRun {
		fmt.Println(warnStyle.Render("No configuration found, starting setup."))
		if err := runSetup(cmd, nil); err != nil {
			return err
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Re-confirm the broker on every interactive launch; the stored value
	// is the default, so enter just keeps it.
	if !firstRun && isatty.IsTerminal(os.Stdin.Fd()) {
		if broker := confirmBroker(os.Stdin, os.Stdout, cfg.MQTTBroker); broker != cfg.MQTTBroker {
			cfg.MQTTBroker = broker
			if err := cfg.Save(configPath); err != nil {
				log.Warn("save config: %v", err)
			}
		}
	}

	wantDash, wantPi1, wantPi2 := upDashboard, upPi1, upPi2
	if !wantDash && !wantPi1 && !wantPi2 {
		wantDash, wantPi1, wantPi2 = true, true, true
	}

	if !remote.Probe(cfg.MQTTBroker, config.MQTTPort, 2*time.Second) {
		return fmt.Errorf("MQTT broker %s:%d is not reachable (is mosquitto running?)", cfg.MQTTBroker, config.MQTTPort)
	}
	fmt.Println(okStyle.Render("✓ ") + "broker " + cfg.MQTTBroker)

	b, err := bus.New(bus.Options{Broker: cfg.MQTTBroker})
	if err != nil {
		return err
	}
	mqttCtx, cancelMQTT := context.WithTimeout(ctx, cfg.GetMQTTConnectTimeout())
	err = b.Connect(mqttCtx)
	cancelMQTT()
	if err != nil {
		return fmt.Errorf("connect MQTT: %w", err)
	}
	defer b.Close()
	fmt.Println(okStyle.Render("✓ ") + "MQTT connected")

	st, err := store.Open(filepath.Join(filepath.Dir(configPath), ".airwave", "history.db"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer st.Close()
	recordEvents(b, st, log)

	if wantDash {
		dash := dashboard.New(cfg.MQTTBroker, cfg.Dashboard.WSPort)
		dash.AttachBus(b)
		go func() {
			if err := dash.Run(ctx, cfg.Dashboard.Port); err != nil {
				log.Error("dashboard stopped: %v", err)
			}
		}()
		go func() {
			if err := dash.Watch(ctx, configPath); err != nil {
				log.Warn("config watch unavailable: %v", err)
			}
		}()
		fmt.Printf("%s dashboard on http://localhost:%d\n", okStyle.Render("✓"), cfg.Dashboard.Port)
		if cfg.Dashboard.Open {
			openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
		}
	}

	mgr := launcher.NewManager(3 * time.Second)
	started := 0
	for _, pi := range []struct {
		name string
		want bool
		cfg  config.PiConfig
	}{
		{"pi1", wantPi1, cfg.Pi1},
		{"pi2", wantPi2, cfg.Pi2},
	} {
		if !pi.want {
			continue
		}
		var proc launcher.Proc
		if upLocal {
			proc = localAgentProc(pi.name, cfg.MQTTBroker)
			if proc == nil {
				continue
			}
		} else {
			if !pi.cfg.Enabled() {
				fmt.Println(dimStyle.Render("- " + pi.name + " not configured, skipping"))
				continue
			}
			proc = launcher.NewSSH(pi.name, remote.New(remote.Target{
				Host:           pi.cfg.Host,
				User:           pi.cfg.User,
				Password:       pi.cfg.Password,
				ConnectTimeout: cfg.GetSSHConnectTimeout(),
			}), agentCommand(pi.cfg), map[string]string{"MQTT_BROKER": cfg.MQTTBroker})
		}
		if err := mgr.Start(ctx, proc); err != nil {
			fmt.Println(warnStyle.Render("! ") + pi.name + " failed to start: " + err.Error())
			log.Error("%s start failed: %v", pi.name, err)
			continue
		}
		where := pi.cfg.Host
		if upLocal {
			where = "this machine"
		}
		fmt.Println(okStyle.Render("✓ ") + pi.name + " started on " + where)
		started++
	}
	if started == 0 {
		fmt.Println(warnStyle.Render("No agents running; dashboard only. Ctrl-C to stop."))
	}

	go func() {
		for line := range mgr.Lines() {
			style, ok := componentStyles[line.Component]
			if !ok {
				style = dimStyle
			}
			fmt.Printf("%s %s\n", style.Render("["+line.Component+"]"), line.Text)
		}
	}()
	go func() {
		for exit := range mgr.Exits() {
			if exit.Err != nil {
				fmt.Println(warnStyle.Render("! " + exit.Component + " exited: " + exit.Err.Error()))
			} else {
				fmt.Println(dimStyle.Render("- " + exit.Component + " exited"))
			}
		}
	}()

	<-ctx.Done()
	fmt.Println()
	fmt.Println(dimStyle.Render("shutting down..."))

	stopped := make(chan struct{})
	go func() {
		mgr.StopAll()
		mgr.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.GetShutdownTimeout()):
		log.Warn("shutdown timeout exceeded, abandoning remote sessions")
	}
	fmt.Println(okStyle.Render("✓ ") + "stopped")
	return nil
}

// confirmBroker asks for the broker host, keeping def on an empty answer.
func confirmBroker(in io.Reader, out io.Writer, def string) string {
	fmt.Fprintf(out, "MQTT broker [%s]: ", def)
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		return def
	}
	if answer := strings.TrimSpace(sc.Text()); answer != "" {
		return answer
	}
	return def
}

// localAgentProc runs this binary's own agent subcommand as a child process.
func localAgentProc(name, broker string) launcher.Proc {
	exe, err := os.Executable()
	if err != nil {
		fmt.Println(warnStyle.Render("! cannot locate own binary: " + err.Error()))
		return nil
	}
	args := []string{"agent", name, "--broker", broker}
	switch name {
	case "pi1":
		// No wrist sensor on this machine; the agent runs voice-only.
		args = append(args, "--imu-device", "none")
	case "pi2":
		// No vision helper locally; the agent runs without tracking.
		args = append(args, "--frames", os.DevNull)
	}
	return launcher.NewLocal(name, "", []string{"MQTT_BROKER=" + broker}, append([]string{exe}, args...)...)
}

// agentCommand builds the remote command line for a Pi. A script path ending
// in .py runs under python3 -u; anything else executes directly, which covers
// a cross-compiled airwave binary on the Pi.
func agentCommand(pi config.PiConfig) string {
	dir := pi.RemoteDir
	if dir == "" {
		dir = "~/AirWave"
	}
	if filepath.Ext(pi.ScriptPath) == ".py" {
		return fmt.Sprintf("cd %s && python3 -u %s", dir, pi.ScriptPath)
	}
	return fmt.Sprintf("cd %s && %s", dir, pi.ScriptPath)
}

// recordEvents mirrors bus traffic into the history store.
func recordEvents(b *bus.Bus, st *store.Store, log *logging.Logger) {
	b.OnGesture(func(ev bus.GestureEvent) {
		if logger != nil {
			logger.Debug("gesture",
				zap.String("type", ev.Type),
				zap.String("source", ev.Source),
				zap.String("device", ev.Device))
		}
		if err := st.RecordGesture(ev); err != nil {
			log.Warn("record gesture: %v", err)
		}
	})
	b.OnMood(func(ev bus.MoodEvent) {
		if logger != nil {
			logger.Debug("mood",
				zap.String("mood", ev.Mood),
				zap.String("playlist", ev.PlaylistName))
		}
		if err := st.RecordMood(ev); err != nil {
			log.Warn("record mood: %v", err)
		}
	})
	b.OnPi1Status(func(s bus.Pi1Status) {
		if s.Status == "" {
			return
		}
		if logger != nil {
			logger.Debug("pi1 status", zap.String("status", s.Status))
		}
		if err := st.RecordStatus("pi1", s.Status, s); err != nil {
			log.Warn("record pi1 status: %v", err)
		}
	})
	b.OnPi2Status(func(s bus.Pi2Status) {
		if s.Status == "" {
			return
		}
		if logger != nil {
			logger.Debug("pi2 status",
				zap.String("status", s.Status),
				zap.Int("volume", s.Volume))
		}
		if err := st.RecordStatus("pi2", s.Status, s); err != nil {
			log.Warn("record pi2 status: %v", err)
		}
	})
}

func openBrowser(url string) {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "linux":
		c = exec.Command("xdg-open", url)
	default:
		return
	}
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Start(); err != nil {
		return
	}
	go func() { _ = c.Wait() }()
}
