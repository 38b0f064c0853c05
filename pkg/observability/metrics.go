package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for generation traffic.
type Metrics struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	siblings    prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wool_generations_total",
				Help: "Total number of upstream generation calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wool_generation_duration_seconds",
				Help:    "Duration of upstream generation calls",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		siblings: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wool_fanout_siblings",
				Help:    "Number of siblings requested per fan-out",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
			},
		),
	}
	m.registry.MustRegister(m.generations, m.duration, m.siblings)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFanout records the width of one fan-out.
func (m *Metrics) ObserveFanout(siblings int) {
	m.siblings.Observe(float64(siblings))
}

// Hooks records every finished sibling call.
func (m *Metrics) Hooks() domain.GenerationHooks {
	return domain.GenerationHooks{
		OnSiblingDone: func(ctx context.Context, e *domain.SiblingEvent) {
			outcome := "success"
			if e.IsError {
				outcome = "failure"
			}
			m.generations.WithLabelValues(string(e.Provider), outcome).Inc()
			m.duration.WithLabelValues(string(e.Provider)).Observe(e.Duration.Seconds())
		},
	}
}

// LogHooks logs sibling calls: starts at debug, completions at info, failures at warn.
func LogHooks(logger *slog.Logger) domain.GenerationHooks {
	return domain.GenerationHooks{
		OnSiblingStart: func(ctx context.Context, e *domain.SiblingEvent) {
			logger.Debug("sibling_start",
				"node_id", e.PlaceholderID,
				"parent_id", e.ParentID,
				"model", e.Model,
			)
		},
		OnSiblingDone: func(ctx context.Context, e *domain.SiblingEvent) {
			if e.IsError {
				logger.Warn("sibling_failed",
					"node_id", e.PlaceholderID,
					"provider", e.Provider,
					"duration", e.Duration,
					"err", e.Error,
				)
				return
			}
			logger.Info("sibling_done",
				"node_id", e.PlaceholderID,
				"provider", e.Provider,
				"duration", e.Duration,
			)
		},
	}
}
