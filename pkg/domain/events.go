package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSiblingStart EventType = "sibling_start"
	EventSiblingDone  EventType = "sibling_done"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// SiblingEvent describes one generation call inside a fan-out.
type SiblingEvent struct {
	EventBase
	ParentID      string        `json:"parent_id"`
	PlaceholderID string        `json:"placeholder_id"`
	Provider      Provider      `json:"provider"`
	Model         string        `json:"model"`
	Duration      time.Duration `json:"duration,omitempty"`
	IsError       bool          `json:"is_error,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// GenerationHooks defines callbacks for fan-out observability.
// Hooks run on the sibling's goroutine and must be safe for concurrent use.
type GenerationHooks struct {
	OnSiblingStart func(context.Context, *SiblingEvent)
	OnSiblingDone  func(context.Context, *SiblingEvent)
}

// Merge returns hooks that call h first and then other.
func (h GenerationHooks) Merge(other GenerationHooks) GenerationHooks {
	return GenerationHooks{
		OnSiblingStart: chain(h.OnSiblingStart, other.OnSiblingStart),
		OnSiblingDone:  chain(h.OnSiblingDone, other.OnSiblingDone),
	}
}

func chain(a, b func(context.Context, *SiblingEvent)) func(context.Context, *SiblingEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *SiblingEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
