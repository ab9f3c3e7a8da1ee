package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultPollIntervalMs is how often subscribed readers are polled.
	DefaultPollIntervalMs = 500
	// MinPollIntervalMs is the fastest allowed poll interval.
	MinPollIntervalMs = 100
)

// Settings holds user preferences that persist across restarts.
type Settings struct {
	CrashReporting bool `json:"crashReporting"` // Whether to send crash reports to Sentry
	PollIntervalMs int  `json:"pollIntervalMs"` // Default reader poll interval for subscriptions
}

var (
	current *Settings
	mu      sync.RWMutex
	// pathOverride replaces the user config location.
	pathOverride string
)

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		CrashReporting: false,
		PollIntervalMs: DefaultPollIntervalMs,
	}
}

// SetPath stores settings at path instead of the user config directory.
// Settings already in memory are dropped and reloaded on next access.
func SetPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	pathOverride = path
	current = nil
}

func settingsPath() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "nfc-tagid", "settings.json"), nil
}

func (s *Settings) normalize() {
	if s.PollIntervalMs == 0 {
		s.PollIntervalMs = DefaultPollIntervalMs
	}
	if s.PollIntervalMs < MinPollIntervalMs {
		s.PollIntervalMs = MinPollIntervalMs
	}
}

// Load reads settings from disk, or returns defaults if the file doesn't exist.
func Load() (*Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	path, err := settingsPath()
	if err != nil {
		current = DefaultSettings()
		return current, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		current = DefaultSettings()
		if os.IsNotExist(err) {
			return current, nil
		}
		return current, err
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		current = DefaultSettings()
		return current, err
	}
	s.normalize()

	current = s
	return current, nil
}

// Save writes the current settings to disk.
func Save() error {
	mu.Lock()
	defer mu.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if current == nil {
		current = DefaultSettings()
	}

	path, err := settingsPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Get returns a copy of the current settings, loading from disk if needed.
func Get() Settings {
	mu.RLock()
	if current != nil {
		s := *current
		mu.RUnlock()
		return s
	}
	mu.RUnlock()

	s, _ := Load()
	return *s
}

// Update applies fn to the current settings and saves them.
func Update(fn func(s *Settings)) error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		current = DefaultSettings()
	}
	fn(current)
	current.normalize()
	return saveLocked()
}

// IsCrashReportingEnabled returns whether crash reporting is enabled.
func IsCrashReportingEnabled() bool {
	return Get().CrashReporting
}
