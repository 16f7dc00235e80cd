package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Settings represents persistent application settings
type Settings struct {
	LastActive    map[string]int64 `json:"lastActive"`
	PinnedSerial  string           `json:"pinnedSerial"`
	TargetPackage string           `json:"targetPackage"`
	LastProxyHost string           `json:"lastProxyHost"`
	LastProxyPort int              `json:"lastProxyPort"`
	CapturePort   int              `json:"capturePort"`
}

// Service manages settings persistence
type Service struct {
	configDir    string
	settingsPath string
	historyPath  string

	mu       sync.RWMutex
	settings Settings

	log zerolog.Logger
}

// Config for creating a new Service
type Config struct {
	// ConfigDir defaults to <user config dir>/adtkit.
	ConfigDir string
	Logger    zerolog.Logger
}

// DefaultConfigDir is <user config dir>/adtkit, or a temp dir fallback.
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "adtkit")
}

// New creates a new Service instance and loads settings.json if present
func New(cfg Config) (*Service, error) {
	configDir := cfg.ConfigDir
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	s := &Service{
		configDir:    configDir,
		settingsPath: filepath.Join(configDir, "settings.json"),
		historyPath:  filepath.Join(configDir, "history.db"),
		settings:     Settings{LastActive: make(map[string]int64)},
		log:          cfg.Logger,
	}
	s.loadSettings()
	return s, nil
}

// ========================================
// Settings Methods
// ========================================

// Snapshot returns a copy of the current settings
func (s *Service) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.LastActive = make(map[string]int64, len(s.settings.LastActive))
	for k, v := range s.settings.LastActive {
		out.LastActive[k] = v
	}
	return out
}

// Update applies fn to the settings under the lock
func (s *Service) Update(fn func(*Settings)) {
	s.mu.Lock()
	fn(&s.settings)
	if s.settings.LastActive == nil {
		s.settings.LastActive = make(map[string]int64)
	}
	s.mu.Unlock()
}

// GetLastActive returns the last active timestamp for a device
func (s *Service) GetLastActive(deviceID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.LastActive[deviceID]
}

// SetLastActive updates the last active timestamp for a device
func (s *Service) SetLastActive(deviceID string, timestamp int64) {
	s.Update(func(st *Settings) { st.LastActive[deviceID] = timestamp })
}

// GetPinnedSerial returns the pinned device serial
func (s *Service) GetPinnedSerial() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.PinnedSerial
}

// SetPinnedSerial sets the pinned device serial
func (s *Service) SetPinnedSerial(serial string) {
	s.Update(func(st *Settings) { st.PinnedSerial = serial })
}

// GetTargetPackage returns the remembered target app package
func (s *Service) GetTargetPackage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.TargetPackage
}

// SetTargetPackage remembers the target app package
func (s *Service) SetTargetPackage(pkg string) {
	s.Update(func(st *Settings) { st.TargetPackage = pkg })
}

// LastProxy returns the last proxy applied to a device
func (s *Service) LastProxy() (string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.LastProxyHost, s.settings.LastProxyPort
}

// SetLastProxy records the last proxy applied to a device
func (s *Service) SetLastProxy(host string, port int) {
	s.Update(func(st *Settings) {
		st.LastProxyHost = host
		st.LastProxyPort = port
	})
}

// SaveSettings persists settings to disk
func (s *Service) SaveSettings() error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}

func (s *Service) loadSettings() {
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.log.Warn().Err(err).Str("path", s.settingsPath).Msg("ignoring unreadable settings")
		return
	}
	if settings.LastActive == nil {
		settings.LastActive = make(map[string]int64)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// ========================================
// Path Accessors
// ========================================

// ConfigDir returns the configuration directory path
func (s *Service) ConfigDir() string {
	return s.configDir
}

// SettingsPath returns the settings file path
func (s *Service) SettingsPath() string {
	return s.settingsPath
}

// HistoryPath returns the proxy history database path
func (s *Service) HistoryPath() string {
	return s.historyPath
}

// Close saves settings before shutdown
func (s *Service) Close() error {
	if err := s.SaveSettings(); err != nil {
		s.log.Warn().Err(err).Msg("saving settings on close failed")
		return err
	}
	return nil
}
