package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lyramakesmusic/wool/internal/config"
	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// OpenRouterBaseURL is the hosted aggregator's API root.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// ChatSimulationSystemPrompt primes a chat model to act as a terminal.
	ChatSimulationSystemPrompt = "The assistant is in CLI simulation mode, and responds to the user's CLI commands only with the output of the command."
	// ChatSimulationCommand is the user turn whose "output" the context becomes.
	ChatSimulationCommand = "<cmd>cat untitled.txt</cmd> (5.8 KB)"

	maxErrorBody    = 200
	maxResponseSize = 8 << 20
)

// Client implements ports.Generator over HTTP.
type Client struct {
	http          *http.Client
	openRouterURL string
	getenv        func(string) string
	storedToken   func() string
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Per-call timeouts still apply.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithOpenRouterURL overrides the aggregator API root.
func WithOpenRouterURL(base string) Option {
	return func(c *Client) {
		c.openRouterURL = strings.TrimSuffix(base, "/")
	}
}

// WithGetenv replaces the environment lookup used for credential resolution.
func WithGetenv(getenv func(string) string) Option {
	return func(c *Client) {
		c.getenv = getenv
	}
}

// WithStoredToken supplies the persisted credential, the last fallback.
func WithStoredToken(token func() string) Option {
	return func(c *Client) {
		c.storedToken = token
	}
}

// WithRateLimit throttles upstream calls to rps per second. rps <= 0 disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{},
		openRouterURL: OpenRouterBaseURL,
		getenv:        os.Getenv,
		storedToken:   func() string { return "" },
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type providerRouting struct {
	Order          []string `json:"order"`
	AllowFallbacks bool     `json:"allow_fallbacks"`
}

type completionRequest struct {
	Model       string           `json:"model"`
	Prompt      string           `json:"prompt"`
	Temperature float64          `json:"temperature"`
	MinP        float64          `json:"min_p"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
	Provider    *providerRouting `json:"provider,omitempty"`
}

type chatRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature float64                        `json:"temperature"`
	MaxTokens   int                            `json:"max_tokens"`
	Stream      bool                           `json:"stream"`
	Provider    *providerRouting               `json:"provider,omitempty"`
}

// Generate sends prompt upstream once and returns the continuation text or a
// failure description.
func (c *Client) Generate(ctx context.Context, prompt string, settings domain.Settings) domain.Result {
	provider := settings.ProviderOrDefault()
	token := config.ResolveCredential(settings, c.getenv, c.storedToken())
	if token == "" && provider == domain.ProviderOpenRouter {
		return domain.Failure("%s", domain.ErrNoCredential.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, settings.Timeout())
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Failure("rate limit: %v", err)
		}
	}

	model, route := domain.ParseModel(settings.Model)
	var routing *providerRouting
	if route != "" && provider == domain.ProviderOpenRouter {
		routing = &providerRouting{Order: []string{route}, AllowFallbacks: false}
	}

	chat := settings.UntitledTrick
	var payload any
	if chat {
		payload = chatRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: ChatSimulationSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: ChatSimulationCommand},
				{Role: openai.ChatMessageRoleAssistant, Content: prompt},
			},
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Stream:      false,
			Provider:    routing,
		}
	} else {
		payload = completionRequest{
			Model:       model,
			Prompt:      prompt,
			Temperature: settings.Temperature,
			MinP:        settings.MinP,
			MaxTokens:   settings.MaxTokens,
			Stream:      false,
			Provider:    routing,
		}
	}

	url := c.endpoint(provider, settings.BaseURL(), chat)
	start := time.Now()
	body, status, err := c.post(ctx, url, token, payload)
	logger := c.logger.With("provider", provider, "model", model, "duration", time.Since(start))
	if err != nil {
		logger.Warn("generation request failed", "err", err)
		return domain.Failure("%v", err)
	}
	if status < 200 || status > 299 {
		logger.Warn("generation rejected upstream", "status", status)
		return domain.Failure("API error %d: %s", status, errorText(body))
	}

	text, err := extract(body, chat)
	if err != nil {
		logger.Warn("generation response unusable", "err", err)
		return domain.Failure("%v", err)
	}
	logger.Debug("generation complete", "chars", utf8.RuneCountInString(text))
	return domain.Success(text)
}

func (c *Client) post(ctx context.Context, url, token string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal the payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) endpoint(provider domain.Provider, custom string, chat bool) string {
	path := "/completions"
	if chat {
		path = "/chat/completions"
	}
	if provider == domain.ProviderOpenRouter {
		return c.openRouterURL + path
	}
	return CompatibleBaseURL(custom) + path
}

// CompatibleBaseURL normalizes a user-supplied OpenAI-compatible endpoint to
// its /v1 root, accepting bare hosts and full completion URLs alike.
func CompatibleBaseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	for _, suffix := range []string{"/chat/completions", "/completions"} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

func extract(body []byte, chat bool) (string, error) {
	if chat {
		var resp openai.ChatCompletionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse the response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("upstream returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	}

	var resp openai.CompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse the response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("upstream returned no choices")
	}
	return resp.Choices[0].Text, nil
}

// errorText returns at most maxErrorBody characters of an error body.
func errorText(body []byte) string {
	if len(body) == 0 {
		return "Unknown error"
	}
	s := string(body)
	if utf8.RuneCountInString(s) <= maxErrorBody {
		return s
	}
	return string([]rune(s)[:maxErrorBody])
}
