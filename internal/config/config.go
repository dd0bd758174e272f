// Package config loads and saves the AirWave launcher configuration.
// The configuration lives in .airwave_config.json in the workspace and
// environment variables take priority over anything in the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the name of the configuration dotfile in the workspace.
const FileName = ".airwave_config.json"

// Config holds all AirWave launcher configuration.
type Config struct {
	// MQTT broker shared by the host and both agents
	MQTTBroker string `json:"mqtt_broker"`

	// Raspberry Pi agents
	Pi1 PiConfig `json:"pi1"`
	Pi2 PiConfig `json:"pi2"`

	// Spotify Web API credentials
	Spotify SpotifyConfig `json:"spotify"`

	// Dashboard web server
	Dashboard DashboardConfig `json:"dashboard"`

	// Logging (read independently by internal/logging)
	Logging LoggingConfig `json:"logging"`

	// Timeouts
	Timeouts TimeoutsConfig `json:"timeouts"`
}

// PiConfig describes one Raspberry Pi agent. A Pi with an empty Host is
// skipped by the launcher.
type PiConfig struct {
	Host       string `json:"host,omitempty"`
	User       string `json:"user,omitempty"`
	ScriptPath string `json:"script_path,omitempty"`
	RemoteDir  string `json:"remote_dir,omitempty"`

	// Password is never persisted to the config file. It comes from
	// PI1_PASSWORD / PI2_PASSWORD; empty means key-based auth.
	Password string `json:"-"`
}

// Enabled reports whether the launcher should manage this Pi.
func (p PiConfig) Enabled() bool {
	return p.Host != ""
}

// Addr returns user@host for display and SSH.
func (p PiConfig) Addr() string {
	return p.User + "@" + p.Host
}

// SpotifyConfig holds the refresh-token credentials for the Web API.
type SpotifyConfig struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// DashboardConfig configures the local web dashboard.
type DashboardConfig struct {
	Port   int  `json:"port"`
	WSPort int  `json:"ws_port"` // MQTT-over-websocket port the browser uses
	Open   bool `json:"open"`    // open the browser on launch
}

// LoggingConfig mirrors internal/logging.Config so the whole file round-trips.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
}

// TimeoutsConfig holds tunable timeouts as duration strings.
type TimeoutsConfig struct {
	SSHConnect  string `json:"ssh_connect"`
	MQTTConnect string `json:"mqtt_connect"`
	Shutdown    string `json:"shutdown"`
}

// MQTTPort is the broker's plain TCP port.
const MQTTPort = 1883

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MQTTBroker: "localhost",

		Pi1: PiConfig{
			User:       "pi",
			ScriptPath: "pi1_agent.py",
			RemoteDir:  "~/AirWave",
		},
		Pi2: PiConfig{
			User:       "pi",
			ScriptPath: "pi2_agent.py",
			RemoteDir:  "~/AirWave",
		},

		Dashboard: DashboardConfig{
			Port:   8080,
			WSPort: 9001,
			Open:   true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Timeouts: TimeoutsConfig{
			SSHConnect:  "5s",
			MQTTConnect: "10s",
			Shutdown:    "10s",
		},
	}
}

// DefaultPath returns the config path in the current working directory.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return FileName
	}
	return filepath.Join(cwd, FileName)
}

// Exists reports whether a config file is present, i.e. setup has run.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load loads configuration from a JSON file. A missing file yields the
// defaults so first-run detection stays with Exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		c.MQTTBroker = broker
	}

	if pw := os.Getenv("PI1_PASSWORD"); pw != "" {
		c.Pi1.Password = pw
	}
	if pw := os.Getenv("PI2_PASSWORD"); pw != "" {
		c.Pi2.Password = pw
	}
	if path := os.Getenv("PI1_SCRIPT_PATH"); path != "" {
		c.Pi1.ScriptPath = path
	}
	if path := os.Getenv("PI2_SCRIPT_PATH"); path != "" {
		c.Pi2.ScriptPath = path
	}

	if id := os.Getenv("SPOTIFY_CLIENT_ID"); id != "" {
		c.Spotify.ClientID = id
	}
	if secret := os.Getenv("SPOTIFY_CLIENT_SECRET"); secret != "" {
		c.Spotify.ClientSecret = secret
	}
	if token := os.Getenv("SPOTIFY_REFRESH_TOKEN"); token != "" {
		c.Spotify.RefreshToken = token
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("mqtt_broker not configured (run setup or set MQTT_BROKER)")
	}

	if c.Pi1.Enabled() && c.Pi1.User == "" {
		return fmt.Errorf("pi1 host set but user is empty")
	}
	if c.Pi2.Enabled() && c.Pi2.User == "" {
		return fmt.Errorf("pi2 host set but user is empty")
	}

	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid dashboard port: %d", c.Dashboard.Port)
	}
	if c.Dashboard.WSPort <= 0 || c.Dashboard.WSPort > 65535 {
		return fmt.Errorf("invalid dashboard websocket port: %d", c.Dashboard.WSPort)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// GetSSHConnectTimeout returns the SSH connect timeout as a duration.
func (c *Config) GetSSHConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.SSHConnect)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetMQTTConnectTimeout returns the MQTT connect timeout as a duration.
func (c *Config) GetMQTTConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.MQTTConnect)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Shutdown)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
