// Package generation adapts the external text-generation services to
// ports.Generator. It speaks the OpenAI-style completions and chat
// completions JSON shapes to OpenRouter or to any compatible server, and
// reports every failure as a domain.Result rather than an error.
package generation
