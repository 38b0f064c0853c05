package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Provider selects the upstream generation service family.
type Provider string

const (
	// ProviderOpenRouter is the hosted aggregator (default).
	ProviderOpenRouter Provider = "openrouter"
	// ProviderOpenAI is any OpenAI-compatible server at a custom endpoint.
	ProviderOpenAI Provider = "openai"
)

// RouteDelimiter separates a model id from its backend routing directive.
const RouteDelimiter = "::"

// Settings enumerates every recognised configuration and generation option.
// The same struct is persisted, loaded by the config layer and decoded from
// per-call settings bags.
type Settings struct {
	Token         string   `json:"token" yaml:"token" mapstructure:"token" koanf:"token"`
	APIKey        string   `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key" koanf:"api_key"`
	Model         string   `json:"model" yaml:"model" mapstructure:"model" koanf:"model"`
	Temperature   float64  `json:"temperature" yaml:"temperature" mapstructure:"temperature" koanf:"temperature"`
	MinP          float64  `json:"min_p" yaml:"min_p" mapstructure:"min_p" koanf:"min_p"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" koanf:"max_tokens"`
	Stream        bool     `json:"stream" yaml:"stream" mapstructure:"stream" koanf:"stream"`
	Autosave      bool     `json:"autosave" yaml:"autosave" mapstructure:"autosave" koanf:"autosave"`
	DarkMode      bool     `json:"dark_mode" yaml:"dark_mode" mapstructure:"dark_mode" koanf:"dark_mode"`
	Provider      Provider `json:"provider" yaml:"provider" mapstructure:"provider" koanf:"provider"`
	CustomAPIKey  string   `json:"custom_api_key" yaml:"custom_api_key" mapstructure:"custom_api_key" koanf:"custom_api_key"`
	Endpoint      string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint" koanf:"endpoint"`
	OpenAIBaseURL string   `json:"openai_endpoint" yaml:"openai_endpoint" mapstructure:"openai_endpoint" koanf:"openai_endpoint"`
	UntitledTrick bool     `json:"untitled_trick" yaml:"untitled_trick" mapstructure:"untitled_trick" koanf:"untitled_trick"`
	NSiblings     int      `json:"n_siblings" yaml:"n_siblings" mapstructure:"n_siblings" koanf:"n_siblings"`

	// TimeoutSeconds bounds each individual upstream call.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" mapstructure:"timeout_seconds" koanf:"timeout_seconds"`
	// MaxSiblings caps the fan-out width of one generation; 0 means DefaultMaxSiblings.
	MaxSiblings int `json:"max_siblings" yaml:"max_siblings" mapstructure:"max_siblings" koanf:"max_siblings"`
	// RequestsPerSecond throttles upstream calls client-side; 0 disables it.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" koanf:"requests_per_second"`
}

// DefaultMaxSiblings bounds a single fan-out when no limit is configured.
const DefaultMaxSiblings = 32

// DefaultSettings returns the values used when nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		Model:          "moonshotai/kimi-k2::deepinfra/fp4",
		Temperature:    0.9,
		MinP:           0.01,
		MaxTokens:      32,
		Stream:         true,
		Autosave:       true,
		Provider:       ProviderOpenRouter,
		OpenAIBaseURL:  "http://localhost:8080/v1",
		NSiblings:      3,
		MaxSiblings:    DefaultMaxSiblings,
		TimeoutSeconds: 60,
	}
}

// Overlay decodes a loose settings bag on top of s and returns the result.
// Keys absent from the bag keep their current value; unknown keys are ignored.
func (s Settings) Overlay(bag map[string]any) (Settings, error) {
	if len(bag) == 0 {
		return s, nil
	}
	out := s
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, fmt.Errorf("settings decoder: %w", err)
	}
	if err := dec.Decode(bag); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

// ProviderOrDefault normalises the provider selector; unknown values fall back
// to OpenRouter.
func (s Settings) ProviderOrDefault() Provider {
	switch Provider(strings.ToLower(string(s.Provider))) {
	case ProviderOpenAI:
		return ProviderOpenAI
	default:
		return ProviderOpenRouter
	}
}

// BaseURL returns the custom endpoint for OpenAI-compatible servers,
// preferring the per-call endpoint over the stored one.
func (s Settings) BaseURL() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return s.OpenAIBaseURL
}

// Timeout returns the per-call upper bound on wait time.
func (s Settings) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// SiblingLimit returns the largest allowed fan-out width.
func (s Settings) SiblingLimit() int {
	if s.MaxSiblings <= 0 {
		return DefaultMaxSiblings
	}
	return s.MaxSiblings
}

// SamplingMeta returns the sampling parameters recorded on placeholders.
// Numbers are float64 so the values survive a JSON round trip unchanged.
func (s Settings) SamplingMeta() map[string]any {
	return map[string]any{
		"model":       s.Model,
		"temperature": s.Temperature,
		"min_p":       s.MinP,
		"max_tokens":  float64(s.MaxTokens),
	}
}

// ParseModel splits "vendor/model::backend" into the model id and the backend
// route. The route is "" when no delimiter is present.
func ParseModel(model string) (id, route string) {
	id, route, _ = strings.Cut(model, RouteDelimiter)
	return id, route
}
