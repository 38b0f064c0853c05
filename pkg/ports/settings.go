package ports

import "github.com/lyramakesmusic/wool/pkg/domain"

// SettingsStore holds the user's persisted generation settings.
type SettingsStore interface {
	// Settings returns the effective settings, including the stored credential.
	Settings() domain.Settings
	// Update merges a loose settings bag and persists the result.
	// An empty "token" keeps the stored credential.
	Update(bag map[string]any) (domain.Settings, error)
}
