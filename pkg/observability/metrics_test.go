package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_HooksCountOutcomes(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnSiblingDone(ctx, &domain.SiblingEvent{Provider: domain.ProviderOpenRouter, Duration: time.Second})
	hooks.OnSiblingDone(ctx, &domain.SiblingEvent{Provider: domain.ProviderOpenRouter, IsError: true})
	hooks.OnSiblingDone(ctx, &domain.SiblingEvent{Provider: domain.ProviderOpenRouter})
	m.ObserveFanout(3)

	expected := `
# HELP wool_generations_total Total number of upstream generation calls by outcome
# TYPE wool_generations_total counter
wool_generations_total{outcome="failure",provider="openrouter"} 1
wool_generations_total{outcome="success",provider="openrouter"} 2
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "wool_generations_total")
	require.NoError(t, err)
	count, err := testutil.GatherAndCount(m.Registry(), "wool_fanout_siblings")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnSiblingDone(context.Background(), &domain.SiblingEvent{Provider: domain.ProviderOpenAI})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wool_generations_total{outcome="success",provider="openai"} 1`)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LogHooks(logging.NewWithWriter(&buf, slog.LevelInfo))
	ctx := context.Background()

	hooks.OnSiblingStart(ctx, &domain.SiblingEvent{PlaceholderID: "p1"})
	hooks.OnSiblingDone(ctx, &domain.SiblingEvent{PlaceholderID: "p1"})
	hooks.OnSiblingDone(ctx, &domain.SiblingEvent{PlaceholderID: "p2", IsError: true, Error: "API error 500: boom"})

	out := buf.String()
	assert.NotContains(t, out, "sibling_start")
	assert.Contains(t, out, "sibling_done")
	assert.Contains(t, out, "sibling_failed")
	assert.Contains(t, out, `err="API error 500: boom"`)
}
