package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SettingsService persists the station layer settings in the data
// directory.
type SettingsService struct {
	dataDir  string
	bus      *EventBus
	mu       sync.RWMutex
	settings Settings
}

// NewSettingsService loads settings from disk over defaults.
func NewSettingsService(dataDir string, defaults Settings, bus *EventBus) *SettingsService {
	s := &SettingsService{dataDir: dataDir, bus: bus, settings: defaults}
	s.loadFromDisk()
	return s
}

// Get returns the current settings.
func (s *SettingsService) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update validates, stores and persists settings.
func (s *SettingsService) Update(next Settings) (Settings, error) {
	if next.SizeScale <= 0 {
		return Settings{}, fmt.Errorf("sizeScale must be positive, got %v", next.SizeScale)
	}

	s.mu.Lock()
	s.settings = next
	err := s.saveToDisk()
	s.mu.Unlock()
	if err != nil {
		return Settings{}, err
	}

	s.bus.Publish(Event{Resource: ResourceSettings, Action: "updated"})
	return next, nil
}

func (s *SettingsService) configFile() string {
	return filepath.Join(s.dataDir, "settings.json")
}

func (s *SettingsService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return
	}
	var stored Settings
	if err := json.Unmarshal(data, &stored); err != nil || stored.SizeScale <= 0 {
		return
	}
	s.settings = stored
}

func (s *SettingsService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}
