package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ========================================
// Structured Logger
// ========================================

// Logger is the process-wide logger.
var Logger zerolog.Logger

var persistentLogger *PersistentLogger

// LogLevel is the minimum level written.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps a flag value to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogConfig describes log outputs.
type LogConfig struct {
	Level      LogLevel
	Console    bool
	File       bool
	FilePath   string
	MaxSizeMB  int // rotate above this size
	MaxAgeDays int
	MaxBackups int
	Compress   bool // gzip rotated files
	// Output overrides the console writer target; stderr when nil so
	// stdout stays clean for command output and the MCP transport.
	Output io.Writer
}

// DefaultLogConfig returns console-only logging at info level.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      LogLevelInfo,
		Console:    true,
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxBackups: 5,
		Compress:   true,
	}
}

// PersistentLogConfig adds a rotating file under <dataDir>/logs.
func PersistentLogConfig(dataDir string) LogConfig {
	cfg := DefaultLogConfig()
	cfg.File = true
	cfg.FilePath = filepath.Join(dataDir, "logs", "adtkit.log")
	return cfg
}

// ========================================
// PersistentLogger
// ========================================

// PersistentLogger is an io.Writer with size-based rotation and cleanup.
type PersistentLogger struct {
	mu          sync.Mutex
	config      LogConfig
	currentFile *os.File
	currentSize int64
	logDir      string
	done        chan struct{}
}

func NewPersistentLogger(config LogConfig) (*PersistentLogger, error) {
	logDir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	pl := &PersistentLogger{
		config: config,
		logDir: logDir,
		done:   make(chan struct{}),
	}
	if err := pl.openFile(); err != nil {
		return nil, err
	}

	go pl.cleanupRoutine()
	return pl, nil
}

func (pl *PersistentLogger) Write(p []byte) (n int, err error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.config.MaxSizeMB > 0 && pl.currentSize+int64(len(p)) > int64(pl.config.MaxSizeMB)*1024*1024 {
		if err := pl.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = pl.currentFile.Write(p)
	pl.currentSize += int64(n)
	return n, err
}

func (pl *PersistentLogger) openFile() error {
	file, err := os.OpenFile(pl.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	pl.currentFile = file
	pl.currentSize = info.Size()
	return nil
}

func (pl *PersistentLogger) rotate() error {
	if pl.currentFile != nil {
		pl.currentFile.Close()
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	rotatedPath := filepath.Join(pl.logDir, fmt.Sprintf("adtkit_%s.log", timestamp))

	if err := os.Rename(pl.config.FilePath, rotatedPath); err != nil {
		return pl.openFile()
	}
	if pl.config.Compress {
		go compressFile(rotatedPath)
	}
	return pl.openFile()
}

func compressFile(filePath string) {
	src, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.Create(filePath + ".gz")
	if err != nil {
		return
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		os.Remove(filePath + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		return
	}
	os.Remove(filePath)
}

func (pl *PersistentLogger) cleanupRoutine() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	pl.cleanup()
	for {
		select {
		case <-pl.done:
			return
		case <-ticker.C:
			pl.cleanup()
		}
	}
}

// cleanup removes rotated files past MaxAgeDays or beyond MaxBackups.
func (pl *PersistentLogger) cleanup() {
	files := sortedLogFiles(filepath.Join(pl.logDir, "adtkit_*.log*"))
	now := time.Now()
	for i, f := range files {
		if pl.config.MaxAgeDays > 0 && now.Sub(f.modTime) > time.Duration(pl.config.MaxAgeDays)*24*time.Hour {
			os.Remove(f.path)
			continue
		}
		if pl.config.MaxBackups > 0 && i >= pl.config.MaxBackups {
			os.Remove(f.path)
		}
	}
}

func (pl *PersistentLogger) Close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	select {
	case <-pl.done:
	default:
		close(pl.done)
	}
	if pl.currentFile != nil {
		return pl.currentFile.Close()
	}
	return nil
}

type logFile struct {
	path    string
	modTime time.Time
}

// sortedLogFiles globs pattern and orders the matches newest first.
func sortedLogFiles(pattern string) []logFile {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var files []logFile
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, logFile{path: m, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	return files
}

// ========================================
// Initialization
// ========================================

// InitLogger replaces the global Logger.
func InitLogger(config LogConfig) error {
	var writers []io.Writer

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	if config.File && config.FilePath != "" {
		pl, err := NewPersistentLogger(config)
		if err != nil {
			return err
		}
		if persistentLogger != nil {
			persistentLogger.Close()
		}
		persistentLogger = pl
		writers = append(writers, pl)
	}

	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	var level zerolog.Level
	switch config.Level {
	case LogLevelDebug:
		level = zerolog.DebugLevel
	case LogLevelWarn:
		level = zerolog.WarnLevel
	case LogLevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

func CloseLogger() {
	if persistentLogger != nil {
		persistentLogger.Close()
		persistentLogger = nil
	}
}

// ModuleLogger returns a child logger for library packages that take an
// injected zerolog.Logger.
func ModuleLogger(module string) zerolog.Logger {
	return Logger.With().Str("module", module).Logger()
}

func LogDebug(module string) *zerolog.Event {
	return Logger.Debug().Str("module", module)
}

func LogInfo(module string) *zerolog.Event {
	return Logger.Info().Str("module", module)
}

func LogWarn(module string) *zerolog.Event {
	return Logger.Warn().Str("module", module)
}

func LogError(module string) *zerolog.Event {
	return Logger.Error().Str("module", module)
}

// ========================================
// User actions
// ========================================

// UserAction names an operation a user triggered.
type UserAction string

const (
	ActionDeviceConnect    UserAction = "device_connect"
	ActionDeviceDisconnect UserAction = "device_disconnect"

	ActionWifiEnable   UserAction = "wifi_enable"
	ActionWifiDisable  UserAction = "wifi_disable"
	ActionWifiSettings UserAction = "wifi_settings"

	ActionProxySet   UserAction = "proxy_set"
	ActionProxyClear UserAction = "proxy_clear"

	ActionCaptureStart UserAction = "capture_start"
	ActionCaptureStop  UserAction = "capture_stop"

	ActionAppClear   UserAction = "app_clear"
	ActionAppRestart UserAction = "app_restart"
	ActionAppReset   UserAction = "app_reset"

	ActionSettingsChange UserAction = "settings_change"
)

// LogUserAction records a user-triggered operation.
func LogUserAction(action UserAction, deviceID string, details map[string]interface{}) {
	event := Logger.Info().
		Str("category", "user_interaction").
		Str("action", string(action)).
		Str("device_id", deviceID)
	addDetails(event, details)
	event.Msg("User action")
}

func addDetails(event *zerolog.Event, details map[string]interface{}) {
	for k, v := range details {
		switch val := v.(type) {
		case string:
			event.Str(k, val)
		case int:
			event.Int(k, val)
		case int64:
			event.Int64(k, val)
		case float64:
			event.Float64(k, val)
		case bool:
			event.Bool(k, val)
		case error:
			event.AnErr(k, val)
		default:
			event.Interface(k, val)
		}
	}
}

// ========================================
// Operation timing
// ========================================

// OperationTimer logs the duration of one operation.
type OperationTimer struct {
	module    string
	operation string
	startTime time.Time
	details   map[string]interface{}
}

func StartOperation(module, operation string) *OperationTimer {
	return &OperationTimer{
		module:    module,
		operation: operation,
		startTime: time.Now(),
		details:   make(map[string]interface{}),
	}
}

func (t *OperationTimer) AddDetail(key string, value interface{}) *OperationTimer {
	t.details[key] = value
	return t
}

func (t *OperationTimer) End() {
	t.finish(Logger.Info(), nil).Msg("Operation completed")
}

func (t *OperationTimer) EndWithError(err error) {
	t.finish(Logger.Error(), err).Msg("Operation failed")
}

func (t *OperationTimer) finish(event *zerolog.Event, err error) *zerolog.Event {
	duration := time.Since(t.startTime)
	event = event.
		Str("module", t.module).
		Str("category", "performance").
		Str("operation", t.operation).
		Int64("duration_ms", duration.Milliseconds())
	if err != nil {
		event = event.Err(err)
	}
	addDetails(event, t.details)
	return event
}

// ========================================
// Log queries
// ========================================

// GetLogFilePath returns the active log file, or "" without file logging.
func GetLogFilePath() string {
	if persistentLogger != nil {
		return persistentLogger.config.FilePath
	}
	return ""
}

// ReadRecentLogs returns the last n lines of the active log file.
func ReadRecentLogs(lines int) ([]string, error) {
	if persistentLogger == nil {
		return nil, fmt.Errorf("persistent logger not initialized")
	}

	content, err := os.ReadFile(persistentLogger.config.FilePath)
	if err != nil {
		return nil, err
	}

	allLines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(allLines) <= lines {
		return allLines, nil
	}
	return allLines[len(allLines)-lines:], nil
}

func init() {
	_ = InitLogger(DefaultLogConfig())
}
