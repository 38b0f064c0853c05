package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
)

// EventType names a change pushed to /events subscribers.
type EventType string

const (
	EventTreeReplaced EventType = "tree_replaced"
	EventFocusChanged EventType = "focus_changed"
	EventSiblingStart EventType = "sibling_start"
	EventSiblingDone  EventType = "sibling_done"
)

// Event is the payload of one server-sent event.
type Event struct {
	Type     EventType `json:"type"`
	NodeID   string    `json:"node_id,omitempty"`
	ParentID string    `json:"parent_id,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // topic -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(topic string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			// Slow client: drop rather than block the publisher.
			sm.logger.Warn("SSE: client buffer full, dropping message", "tree", topic)
		}
	}
}

// Publish encodes e and broadcasts it on topic.
func (sm *StreamManager) Publish(topic string, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		sm.logger.Error("SSE: encode event failed", "err", err)
		return
	}
	sm.Broadcast(topic, string(data))
}

// Hooks publishes sibling progress on topic so clients can redraw each
// placeholder as soon as its own call finishes.
func (sm *StreamManager) Hooks(topic string) domain.GenerationHooks {
	return domain.GenerationHooks{
		OnSiblingStart: func(ctx context.Context, e *domain.SiblingEvent) {
			sm.Publish(topic, Event{Type: EventSiblingStart, NodeID: e.PlaceholderID, ParentID: e.ParentID})
		},
		OnSiblingDone: func(ctx context.Context, e *domain.SiblingEvent) {
			sm.Publish(topic, Event{Type: EventSiblingDone, NodeID: e.PlaceholderID, ParentID: e.ParentID, Error: e.Error})
		},
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(s.Topic)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
