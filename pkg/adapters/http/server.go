package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lyramakesmusic/wool"
	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
)

// maxBodySize bounds request bodies; whole trees are posted to /tree/save.
const maxBodySize = 16 << 20

// Service is the part of wool.Service the HTTP adapter drives.
type Service interface {
	Tree(ctx context.Context) (*domain.Tree, error)
	CreateTree(ctx context.Context, seed string) (*domain.Tree, error)
	Focus(ctx context.Context, nodeID string) (*domain.Tree, error)
	ReplaceTree(ctx context.Context, tree *domain.Tree) error
	Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResponse, error)
	Settings() domain.Settings
	UpdateSettings(bag map[string]any) (domain.Settings, error)
}

// Server holds the HTTP handlers.
type Server struct {
	Service Service
	Streams *StreamManager
	Topic   string

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a StreamManager, e.g. one whose hooks were given to the service.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithTopic sets the stream topic tree updates are published on.
func WithTopic(topic string) Option {
	return func(s *Server) {
		s.Topic = topic
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(svc Service, opts ...Option) http.Handler {
	s := &Server{
		Service: svc,
		Topic:   domain.DefaultTreeName,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/tree", s.GetTree)
	r.Post("/tree/create", s.CreateTree)
	r.Post("/tree/focus", s.FocusNode)
	r.Post("/tree/save", s.SaveTree)
	r.Post("/generate", s.Generate)
	r.Get("/settings", s.GetSettings)
	r.Post("/settings", s.SaveSettings)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetTree handles GET /tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Service.Tree(r.Context())
	if err != nil {
		s.fail(w, "GetTree", err)
		return
	}
	s.writeJSON(w, tree)
}

// CreateTree handles POST /tree/create.
func (s *Server) CreateTree(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seed string `json:"seed"`
	}
	if !s.decode(w, r, "CreateTree", &body) {
		return
	}

	tree, err := s.Service.CreateTree(r.Context(), body.Seed)
	if err != nil {
		s.fail(w, "CreateTree", err)
		return
	}
	s.publish(Event{Type: EventTreeReplaced, NodeID: tree.FocusedNodeID()})
	s.writeJSON(w, tree)
}

// FocusNode handles POST /tree/focus.
func (s *Server) FocusNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeID string `json:"node_id"`
	}
	if !s.decode(w, r, "FocusNode", &body) {
		return
	}

	if _, err := s.Service.Focus(r.Context(), body.NodeID); err != nil {
		s.fail(w, "FocusNode", err)
		return
	}
	s.publish(Event{Type: EventFocusChanged, NodeID: body.NodeID})
	s.writeJSON(w, statusOK)
}

// SaveTree handles POST /tree/save, overwriting the stored tree wholesale.
func (s *Server) SaveTree(w http.ResponseWriter, r *http.Request) {
	tree := domain.NewEmptyTree()
	if !s.decode(w, r, "SaveTree", tree) {
		return
	}

	if err := s.Service.ReplaceTree(r.Context(), tree); err != nil {
		s.fail(w, "SaveTree", err)
		return
	}
	s.publish(Event{Type: EventTreeReplaced, NodeID: tree.FocusedNodeID()})
	s.writeJSON(w, statusOK)
}

// Generate handles POST /generate.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	var body domain.GenerateRequest
	if !s.decode(w, r, "Generate", &body) {
		return
	}

	resp, err := s.Service.Generate(r.Context(), body)
	if err != nil {
		if errors.Is(err, wool.ErrInvalidSettings) || errors.Is(err, domain.ErrTooManySiblings) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			s.logger.Warn("Generate: rejected request", "err", err)
			return
		}
		s.fail(w, "Generate", err)
		return
	}
	s.writeJSON(w, resp)
}

// GetSettings handles GET /settings. The stored token is included: this is a
// single-user local server.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.Service.Settings())
}

// SaveSettings handles POST /settings.
func (s *Server) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var bag map[string]any
	if !s.decode(w, r, "SaveSettings", &bag) {
		return
	}

	if _, err := s.Service.UpdateSettings(bag); err != nil {
		http.Error(w, fmt.Sprintf("Invalid settings: %v", err), http.StatusBadRequest)
		s.logger.Warn("SaveSettings: rejected", "err", err)
		return
	}
	s.writeJSON(w, statusOK)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, statusOK)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	settings := s.Service.Settings()
	s.writeJSON(w, map[string]string{
		"app":      "wool-http",
		"version":  strings.TrimSpace(wool.Version),
		"provider": string(settings.ProviderOrDefault()),
		"model":    settings.Model,
	})
}

var statusOK = map[string]string{"status": "ok"}

func (s *Server) publish(e Event) {
	s.Streams.Publish(s.Topic, e)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn(op+": invalid request body", "err", err)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	s.logger.Error(op+" failed", "err", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
