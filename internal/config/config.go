// Package config loads and persists the user's generation settings.
//
// Values are layered with koanf: built-in defaults, then the settings file,
// then WOOL_* environment variables. Only the first two layers are written
// back when settings change.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultPath is the settings file used when none is given.
	DefaultPath = "config.json"
	// EnvPrefix marks environment variables that override settings,
	// e.g. WOOL_MAX_TOKENS=64.
	EnvPrefix = "WOOL_"
	// CredentialEnv is the environment-level default credential.
	CredentialEnv = "OPENROUTER_API_KEY"
)

// Store holds the persisted settings and the effective view with environment
// overrides applied. It is safe for concurrent use.
type Store struct {
	path   string
	parser koanf.Parser

	mu        sync.RWMutex
	persisted domain.Settings
	effective domain.Settings
}

// ParserFor picks the koanf parser by file extension. JSON is the default.
func ParserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return json.Parser()
	}
}

// Load reads settings from path. A missing file is created with defaults.
func Load(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, parser: ParserFor(path)}

	defaults, err := toMap(domain.DefaultSettings())
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := k.Load(file.Provider(path), s.parser); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		// First run: materialize the defaults so the user has a file to edit.
		if err := write(path, s.parser, defaults); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("error checking config %s: %w", path, statErr)
	}

	if err := k.UnmarshalWithConf("", &s.persisted, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// refresh recomputes the effective settings. Callers hold mu or own s exclusively.
func (s *Store) refresh() error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	}), nil)
	if err != nil {
		return fmt.Errorf("error loading environment: %w", err)
	}

	effective, err := s.persisted.Overlay(k.All())
	if err != nil {
		return fmt.Errorf("invalid %s override: %w", EnvPrefix, err)
	}
	s.effective = effective
	return nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Settings returns the effective settings.
func (s *Store) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective
}

// Token returns the effective stored credential.
func (s *Store) Token() string {
	return s.Settings().Token
}

// Update merges bag into the persisted settings, writes the file and returns
// the new effective settings.
func (s *Store) Update(bag map[string]any) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := Merge(s.persisted, bag)
	if err != nil {
		return s.effective, err
	}
	m, err := toMap(merged)
	if err != nil {
		return s.effective, err
	}
	if err := write(s.path, s.parser, m); err != nil {
		return s.effective, err
	}

	s.persisted = merged
	if err := s.refresh(); err != nil {
		return s.effective, err
	}
	return s.effective, nil
}

// Merge applies a settings update to existing. An empty token in the update
// keeps the stored one, so clients that never see the secret cannot erase it.
func Merge(existing domain.Settings, update map[string]any) (domain.Settings, error) {
	if tok, ok := update["token"]; ok {
		if str, isStr := tok.(string); tok == nil || (isStr && str == "") {
			trimmed := make(map[string]any, len(update))
			for k, v := range update {
				if k != "token" {
					trimmed[k] = v
				}
			}
			update = trimmed
		}
	}
	return existing.Overlay(update)
}

// ResolveCredential returns the first non-empty credential from, in order:
// the per-call token or api_key (plus custom_api_key for OpenAI-compatible
// servers), the OPENROUTER_API_KEY environment variable, and the stored token.
func ResolveCredential(perCall domain.Settings, getenv func(string) string, stored string) string {
	candidates := []string{perCall.Token, perCall.APIKey}
	if perCall.ProviderOrDefault() == domain.ProviderOpenAI {
		candidates = append(candidates, perCall.CustomAPIKey)
	}
	if getenv != nil {
		candidates = append(candidates, getenv(CredentialEnv))
	}
	candidates = append(candidates, stored)

	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func toMap(s domain.Settings) (map[string]any, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(s, &out); err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	// Keep the provider a plain string for every parser.
	out["provider"] = string(s.Provider)
	return out, nil
}

// write marshals the bag through parser and replaces path atomically.
func write(path string, parser koanf.Parser, bag map[string]any) error {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(bag, "."), nil); err != nil {
		return fmt.Errorf("error preparing config: %w", err)
	}
	data, err := k.Marshal(parser)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tmp-config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
