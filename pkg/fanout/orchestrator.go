// Package fanout generates several sibling continuations of one node
// concurrently and merges each result into the tree as it arrives.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Orchestrator issues one generation call per placeholder.
type Orchestrator struct {
	generator ports.Generator
	hooks     domain.GenerationHooks
	logger    *slog.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithHooks registers observers for every sibling call.
func WithHooks(hooks domain.GenerationHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator over generator.
func New(generator ports.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: generator,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateSiblings builds the context of parentID once, generates one
// continuation per placeholder id in parallel and applies each outcome to
// tree as soon as it completes. It returns exactly one outcome per id, in
// completion order. Individual failures are reported in the outcomes; the
// call itself never fails.
func (o *Orchestrator) GenerateSiblings(ctx context.Context, tree *domain.Tree, parentID string, placeholderIDs []string, settings domain.Settings) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(placeholderIDs))
	if len(placeholderIDs) == 0 {
		return outcomes
	}

	logger := o.logger.With("parent_id", parentID, "siblings", len(placeholderIDs))

	path, err := tree.Path(parentID)
	if errors.Is(err, domain.ErrMalformedTree) {
		logger.Warn("refusing to generate from malformed tree", "err", err)
		for _, id := range placeholderIDs {
			out := domain.NewOutcome(id, domain.Failure("%v", err))
			tree.Apply(id, out)
			outcomes = append(outcomes, out)
		}
		return outcomes
	}
	prompt := domain.JoinText(path)

	model, _ := domain.ParseModel(settings.Model)
	provider := settings.ProviderOrDefault()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	// One goroutine per sibling. Failures travel as outcomes, so no goroutine
	// returns an error and one sibling never cancels the others.
	g.SetLimit(len(placeholderIDs))

	for _, id := range placeholderIDs {
		g.Go(func() error {
			event := &domain.SiblingEvent{
				EventBase:     domain.EventBase{Timestamp: time.Now(), Type: domain.EventSiblingStart},
				ParentID:      parentID,
				PlaceholderID: id,
				Provider:      provider,
				Model:         model,
			}
			if o.hooks.OnSiblingStart != nil {
				o.hooks.OnSiblingStart(ctx, event)
			}

			start := time.Now()
			res := o.generate(ctx, prompt, settings)
			out := domain.NewOutcome(id, res)
			if !tree.Apply(id, out) {
				logger.Debug("placeholder vanished before its result arrived", "node_id", id)
			}

			done := *event
			done.Timestamp = time.Now()
			done.Type = domain.EventSiblingDone
			done.Duration = time.Since(start)
			done.IsError = res.Failed()
			done.Error = res.Failure
			if o.hooks.OnSiblingDone != nil {
				o.hooks.OnSiblingDone(ctx, &done)
			}

			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug("fan-out complete", "outcomes", len(outcomes))
	return outcomes
}

// generate shields the batch from a panicking generator.
func (o *Orchestrator) generate(ctx context.Context, prompt string, settings domain.Settings) (res domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("generator panicked", "panic", r)
			res = domain.Failure("%s", fmt.Sprint(r))
		}
	}()
	return o.generator.Generate(ctx, prompt, settings)
}
