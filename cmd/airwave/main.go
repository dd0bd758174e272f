// Package main implements the airwave CLI: the Mac-side launcher that boots
// the whole rig, plus the agent runtimes the Pis execute.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"airwave/internal/config"
	"airwave/internal/logging"
)

var (
	// Global flags
	debugMode  bool
	verbose    bool
	configPath string

	// Console logger, only built with --verbose. The categorized file logs
	// under .airwave/logs/ are separate and follow the debug config.
	logger *zap.Logger
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "airwave",
	Short: "AirWave - gesture-controlled music across the room",
	Long: `AirWave orchestrates a three-device music rig:

  pi1 reads a wrist IMU and a microphone, turning motion and speech into
  gesture events; pi2 follows the listener with a pan/tilt camera, matching
  volume to distance and mood to music. This machine runs the MQTT glue,
  the web dashboard, and the Spotify bridge.

Run without arguments to launch everything.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = config.DefaultPath()
		}
		if err := logging.Initialize(filepath.Dir(configPath)); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		if debugMode {
			logging.ForceDebug()
		}
		if verbose {
			zcfg := zap.NewDevelopmentConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			var err error
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runUp,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to .airwave/logs/")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log bus traffic to the console")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to .airwave_config.json (default: working directory)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
