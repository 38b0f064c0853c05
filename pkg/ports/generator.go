package ports

import (
	"context"

	"github.com/lyramakesmusic/wool/pkg/domain"
)

// Generator is the boundary to the external text-generation service.
// Implementations never retry or cache, and report every failure inside the
// returned Result instead of an error, so one call cannot abort its siblings.
type Generator interface {
	Generate(ctx context.Context, prompt string, settings domain.Settings) domain.Result
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, settings domain.Settings) domain.Result

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, settings domain.Settings) domain.Result {
	return f(ctx, prompt, settings)
}
