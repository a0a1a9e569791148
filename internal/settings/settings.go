package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Settings holds persistent preferences and counters
type Settings struct {
	ScansLifetime   int64  `json:"scans_lifetime"`
	PreferredDevice string `json:"preferred_device,omitempty"` // Label of camera to select on startup
}

// Manager handles loading and saving settings
type Manager struct {
	path         string
	settings     Settings
	mu           sync.RWMutex
	dirty        bool
	saveTimer    *time.Timer
	saveDuration time.Duration
}

// NewManager creates a new settings manager
func NewManager() *Manager {
	return &Manager{
		path:         defaultPath(),
		saveDuration: 2 * time.Second, // Debounce saves
	}
}

// NewManagerAt creates a manager backed by an explicit file path
func NewManagerAt(path string) *Manager {
	return &Manager{
		path:         path,
		saveDuration: 2 * time.Second,
	}
}

// defaultPath returns the default settings file path
func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".qrlens-settings.json"
	}
	return filepath.Join(home, ".qrlens", "settings.json")
}

// Load loads settings from disk
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			// No settings file yet, start fresh
			m.settings = Settings{}
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &m.settings)
}

// Save saves settings to disk immediately
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveLocked()
}

// saveLocked saves settings without acquiring the lock (caller must hold lock)
func (m *Manager) saveLocked() error {
	// Ensure directory exists
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return err
	}

	m.dirty = false
	return os.WriteFile(m.path, data, 0644)
}

// ScansLifetime returns the lifetime decoded-scan counter
func (m *Manager) ScansLifetime() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.ScansLifetime
}

// PreferredDevice returns the remembered camera label
func (m *Manager) PreferredDevice() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.PreferredDevice
}

// SetPreferredDevice remembers the camera label and schedules a save
func (m *Manager) SetPreferredDevice(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings.PreferredDevice == label {
		return
	}

	m.settings.PreferredDevice = label
	m.dirty = true
	m.scheduleSaveLocked()
}

// AddScan bumps the lifetime scan counter and schedules a debounced save
func (m *Manager) AddScan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings.ScansLifetime++
	m.dirty = true
	m.scheduleSaveLocked()
}

// scheduleSaveLocked arms the debounced background save (caller holds lock)
func (m *Manager) scheduleSaveLocked() {
	// Cancel any pending save timer
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(m.saveDuration, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.dirty {
			_ = m.saveLocked() // Ignore errors for background save
		}
	})
}

// Close ensures any pending saves are written
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}

	if m.dirty {
		return m.saveLocked()
	}
	return nil
}
