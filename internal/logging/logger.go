// Package logging provides debug-mode categorized file logging for AirWave.
// Logs are written to .airwave/logs/ with one file per category per day.
// Logging is off unless debug mode is enabled via AIRWAVE_DEBUG, the --debug
// flag, or the logging section of .airwave_config.json.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category is a log stream. Each category writes to its own file so a noisy
// subsystem does not bury the others.
type Category string

const (
	CategoryLauncher  Category = "launcher"  // process supervision
	CategorySetup     Category = "setup"     // onboarding wizard
	CategorySync      Category = "sync"      // file transfer to the Pis
	CategorySSH       Category = "ssh"       // remote sessions
	CategoryMQTT      Category = "mqtt"      // broker connection, pub/sub
	CategoryGesture   Category = "gesture"   // IMU pipeline
	CategoryVoice     Category = "voice"     // transcript mapping
	CategoryTracking  Category = "tracking"  // pan/distance/volume control
	CategoryMood      Category = "mood"      // mood scoring, recommendations
	CategorySpotify   Category = "spotify"   // Web API calls
	CategoryDashboard Category = "dashboard" // HTTP server, websocket feed
	CategoryStore     Category = "store"     // event history
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Config mirrors the logging section of .airwave_config.json. Kept local to
// avoid importing the config package from everywhere.
type Config struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
}

type configFile struct {
	Logging Config `json:"logging"`
}

// Logger writes to one category's file. The zero Logger is a no-op.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggersMu sync.Mutex
	loggers   = map[Category]*Logger{}

	stateMu  sync.RWMutex
	logsDir  string
	cfg      Config
	logLevel = LevelInfo
)

// Initialize points the logging system at the workspace and loads the debug
// configuration from .airwave_config.json if present. AIRWAVE_DEBUG=1 forces
// debug mode regardless of the file.
func Initialize(workspace string) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	stateMu.Lock()
	logsDir = filepath.Join(workspace, ".airwave", "logs")
	loadConfigLocked(filepath.Join(workspace, ".airwave_config.json"))
	debug := cfg.DebugMode
	dir := logsDir
	stateMu.Unlock()

	if !debug {
		return nil // silent no-op outside debug mode
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	boot := Get(CategoryLauncher)
	boot.Info("=== AirWave logging initialized ===")
	boot.Info("logs directory: %s", dir)
	return nil
}

// ForceDebug enables debug mode programmatically (the --debug flag).
func ForceDebug() {
	stateMu.Lock()
	cfg.DebugMode = true
	logLevel = LevelDebug
	stateMu.Unlock()
}

func loadConfigLocked(path string) {
	forced := cfg.DebugMode // keep a prior ForceDebug
	cfg = Config{DebugMode: forced}
	logLevel = LevelInfo
	if forced {
		logLevel = LevelDebug
	}

	if v := os.Getenv("AIRWAVE_DEBUG"); v == "1" || v == "true" {
		cfg.DebugMode = true
		logLevel = LevelDebug
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return // no config file, env decides
	}
	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] bad config %s: %v\n", path, err)
		return
	}
	if cf.Logging.DebugMode {
		cfg.DebugMode = true
	}
	cfg.Categories = cf.Logging.Categories
	cfg.Level = cf.Logging.Level

	switch cfg.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	case "":
		if cfg.DebugMode {
			logLevel = LevelDebug
		}
	}
}

// IsDebugMode reports whether logging is active.
func IsDebugMode() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return cfg.DebugMode
}

func categoryEnabled(c Category) bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, ok := cfg.Categories[string(c)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories get
// a no-op logger.
func Get(category Category) *Logger {
	if !categoryEnabled(category) {
		return &Logger{category: category}
	}

	stateMu.RLock()
	dir := logsDir
	stateMu.RUnlock()
	if dir == "" {
		return &Logger{category: category}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", name, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] "+format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if l == nil || l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l == nil || l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] "+format, args...)
}

// Error logs at error level. Errors are never filtered.
func (l *Logger) Error(format string, args ...interface{}) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] "+format, args...)
}

// CloseAll closes every open log file. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = map[Category]*Logger{}
}

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold warns when the operation ran longer than threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
