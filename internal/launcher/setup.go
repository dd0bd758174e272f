package launcher

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"airwave/internal/config"
	"airwave/internal/logging"
	"airwave/internal/remote"
)

var (
	stepStyle    = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Wizard walks the user through first-run configuration: broker address,
// then each Pi with a reachability check.
type Wizard struct {
	in  *bufio.Scanner
	out io.Writer
	log *logging.Logger

	// probe is swapped in tests.
	probe func(host string, port int, timeout time.Duration) bool
}

// NewWizard builds a wizard reading answers from in.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		in:    bufio.NewScanner(in),
		out:   out,
		log:   logging.Get(logging.CategorySetup),
		probe: remote.Probe,
	}
}

// Run fills cfg in place. Saving is left to the caller.
func (w *Wizard) Run(cfg *config.Config) error {
	fmt.Fprintf(w.out, "\n%s\n\n", stepStyle.Render("━━━ Step 1: MQTT Broker ━━━"))
	fmt.Fprintf(w.out, "  The machine running Mosquitto, usually this one.\n")
	fmt.Fprintf(w.out, "  Examples: My-MacBook.local, 192.168.1.100, localhost\n\n")

	if err := w.configureBroker(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w.out, "\n%s\n\n", stepStyle.Render("━━━ Step 2: Raspberry Pi 1 (gesture sensor) ━━━"))
	fmt.Fprintf(w.out, "  Leave the host blank to skip launching this agent.\n\n")
	if err := w.configurePi("Pi1", &cfg.Pi1); err != nil {
		return err
	}

	fmt.Fprintf(w.out, "\n%s\n\n", stepStyle.Render("━━━ Step 3: Raspberry Pi 2 (camera and speaker) ━━━"))
	fmt.Fprintf(w.out, "  Leave the host blank to skip launching this agent.\n\n")
	if err := w.configurePi("Pi2", &cfg.Pi2); err != nil {
		return err
	}

	fmt.Fprintf(w.out, "\n%s\n\n", stepStyle.Render("━━━ Step 4: Spotify (optional) ━━━"))
	fmt.Fprintf(w.out, "  With credentials, gestures control Spotify playback directly.\n")
	fmt.Fprintf(w.out, "  Without them, pi2 falls back to the local player.\n\n")
	if err := w.configureSpotify(cfg); err != nil {
		return err
	}

	w.printSummary(cfg)
	return nil
}

func (w *Wizard) configureSpotify(cfg *config.Config) error {
	answer, err := w.prompt("Configure Spotify playback? [y/N]", "")
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		fmt.Fprintf(w.out, "  %s\n", dimStyle.Render("Spotify skipped."))
		return nil
	}

	if cfg.Spotify.ClientID, err = w.prompt("Client ID", cfg.Spotify.ClientID); err != nil {
		return err
	}
	if cfg.Spotify.ClientSecret, err = w.prompt("Client secret", cfg.Spotify.ClientSecret); err != nil {
		return err
	}
	if cfg.Spotify.RefreshToken, err = w.prompt("Refresh token", cfg.Spotify.RefreshToken); err != nil {
		return err
	}
	w.log.Info("spotify credentials configured")
	return nil
}

func (w *Wizard) configureBroker(cfg *config.Config) error {
	for {
		broker, err := w.prompt("MQTT broker address", cfg.MQTTBroker)
		if err != nil {
			return err
		}
		if broker == "" {
			fmt.Fprintf(w.out, "  %s\n", warnStyle.Render("Please enter an address."))
			continue
		}

		fmt.Fprintf(w.out, "  Testing %s:%d...\n", broker, config.MQTTPort)
		if w.probe(broker, config.MQTTPort, 3*time.Second) {
			fmt.Fprintf(w.out, "  %s\n", successStyle.Render("Broker is reachable."))
			cfg.MQTTBroker = broker
			w.log.Info("broker configured: %s", broker)
			return nil
		}

		fmt.Fprintf(w.out, "  %s\n", warnStyle.Render(
			fmt.Sprintf("Could not connect to %s:%d.", broker, config.MQTTPort)))
		answer, err := w.prompt("Continue anyway? [y/N]", "")
		if err != nil {
			return err
		}
		if strings.EqualFold(answer, "y") {
			cfg.MQTTBroker = broker
			w.log.Warn("broker configured without reachability check: %s", broker)
			return nil
		}
	}
}

func (w *Wizard) configurePi(label string, pi *config.PiConfig) error {
	host, err := w.prompt(label+" hostname or IP", pi.Host)
	if err != nil {
		return err
	}
	if host == "" {
		pi.Host = ""
		fmt.Fprintf(w.out, "  %s\n", dimStyle.Render(label+" skipped."))
		return nil
	}
	pi.Host = host

	if pi.User, err = w.prompt(label+" username", defaultString(pi.User, "pi")); err != nil {
		return err
	}
	if pi.ScriptPath, err = w.prompt("Agent script path", pi.ScriptPath); err != nil {
		return err
	}
	if pi.RemoteDir, err = w.prompt("Remote directory", defaultString(pi.RemoteDir, "~/AirWave")); err != nil {
		return err
	}

	fmt.Fprintf(w.out, "  Testing SSH to %s...\n", pi.Addr())
	if w.probe(pi.Host, remote.DefaultPort, 5*time.Second) {
		fmt.Fprintf(w.out, "  %s\n", successStyle.Render("SSH port is reachable."))
	} else {
		fmt.Fprintf(w.out, "  %s\n", warnStyle.Render("SSH port unreachable. Check that the Pi is on"))
		fmt.Fprintf(w.out, "  %s\n", warnStyle.Render("and SSH is enabled (or run: ssh-copy-id "+pi.Addr()+")."))
	}
	w.log.Info("%s configured: %s", label, pi.Addr())
	return nil
}

func (w *Wizard) printSummary(cfg *config.Config) {
	fmt.Fprintf(w.out, "\n%s\n\n", stepStyle.Render("━━━ Configuration Summary ━━━"))
	fmt.Fprintf(w.out, "  MQTT broker:  %s\n", valueStyle.Render(cfg.MQTTBroker))
	for _, pi := range []struct {
		label string
		cfg   config.PiConfig
	}{{"Pi1", cfg.Pi1}, {"Pi2", cfg.Pi2}} {
		if pi.cfg.Enabled() {
			fmt.Fprintf(w.out, "  %s:          %s\n", pi.label, successStyle.Render(pi.cfg.Addr()))
			fmt.Fprintf(w.out, "                %s\n", dimStyle.Render(pi.cfg.ScriptPath))
		} else {
			fmt.Fprintf(w.out, "  %s:          %s\n", pi.label, warnStyle.Render("(not configured)"))
		}
	}
	if cfg.Spotify.ClientID != "" {
		fmt.Fprintf(w.out, "  Spotify:      %s\n", successStyle.Render("configured"))
	} else {
		fmt.Fprintf(w.out, "  Spotify:      %s\n", dimStyle.Render("local player only"))
	}
	fmt.Fprintf(w.out, "\n  %s\n\n", successStyle.Render("Setup complete."))
}

// prompt reads one answer, returning def when the user just hits enter.
func (w *Wizard) prompt(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "  %s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w.out, "  %s: ", label)
	}
	if !w.in.Scan() {
		if err := w.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	answer := strings.TrimSpace(w.in.Text())
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
