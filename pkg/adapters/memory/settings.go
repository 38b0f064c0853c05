package memory

import (
	"sync"

	"github.com/lyramakesmusic/wool/internal/config"
	"github.com/lyramakesmusic/wool/pkg/domain"
)

// Settings is a ports.SettingsStore that never touches disk.
type Settings struct {
	mu       sync.RWMutex
	settings domain.Settings
}

// NewSettings starts from initial.
func NewSettings(initial domain.Settings) *Settings {
	return &Settings{settings: initial}
}

func (s *Settings) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Settings) Update(bag map[string]any) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := config.Merge(s.settings, bag)
	if err != nil {
		return s.settings, err
	}
	s.settings = merged
	return merged, nil
}
