package wool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/adapters/generation"
	"github.com/lyramakesmusic/wool/pkg/adapters/memory"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/fanout"
	"github.com/lyramakesmusic/wool/pkg/observability"
	"github.com/lyramakesmusic/wool/pkg/ports"
	"github.com/lyramakesmusic/wool/pkg/session"
)

// ErrInvalidSettings is returned when a per-call settings bag cannot be decoded.
var ErrInvalidSettings = errors.New("invalid settings")

// Service is the high-level entry point: it owns the persisted tree, the
// settings and the generation pipeline, and is what every interface adapter
// (HTTP, MCP, CLI) drives.
type Service struct {
	store     ports.TreeStore
	locker    ports.DistributedLocker
	settings  ports.SettingsStore
	generator ports.Generator
	metrics   *observability.Metrics
	hooks     domain.GenerationHooks
	treeName  string
	logger    *slog.Logger

	sessions     *session.Manager
	orchestrator *fanout.Orchestrator
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithStore sets the tree persistence backend (default: in memory).
func WithStore(store ports.TreeStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLocker enables distributed locking around tree updates.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithSettings sets the settings source (default: in-memory defaults).
func WithSettings(settings ports.SettingsStore) Option {
	return func(s *Service) {
		s.settings = settings
	}
}

// WithGenerator replaces the upstream generation client.
func WithGenerator(g ports.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithMetrics records generation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGenerationHooks registers observers for sibling calls.
func WithGenerationHooks(hooks domain.GenerationHooks) Option {
	return func(s *Service) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithTreeName sets the name the tree is stored under (default: tree_state).
func WithTreeName(name string) Option {
	return func(s *Service) {
		s.treeName = name
	}
}

// WithLogger sets a custom structured logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New initializes a Service. Without options it keeps everything in memory
// and talks to OpenRouter with the default settings.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		treeName: domain.DefaultTreeName,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.treeName == "" {
		return nil, errors.New("tree name cannot be empty")
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}
	if s.settings == nil {
		s.settings = memory.NewSettings(domain.DefaultSettings())
	}
	if s.generator == nil {
		s.generator = generation.New(
			generation.WithStoredToken(func() string { return s.settings.Settings().Token }),
			generation.WithRateLimit(s.settings.Settings().RequestsPerSecond),
			generation.WithLogger(s.logger),
		)
	}

	managerOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(s.locker))
	}
	s.sessions = session.NewManager(s.store, managerOpts...)

	hooks := s.hooks
	if s.metrics != nil {
		hooks = hooks.Merge(s.metrics.Hooks())
	}
	s.orchestrator = fanout.New(s.generator,
		fanout.WithHooks(hooks),
		fanout.WithLogger(s.logger),
	)
	return s, nil
}

// TreeName returns the name the tree is stored under.
func (s *Service) TreeName() string {
	return s.treeName
}

// Tree returns the current tree. A missing or unreadable tree is empty.
func (s *Service) Tree(ctx context.Context) (*domain.Tree, error) {
	return s.sessions.Load(ctx, s.treeName)
}

// CreateTree replaces the stored tree with a fresh one rooted at seed.
func (s *Service) CreateTree(ctx context.Context, seed string) (*domain.Tree, error) {
	tree := domain.NewTree(seed)
	if err := s.sessions.Save(ctx, s.treeName, tree); err != nil {
		return nil, fmt.Errorf("failed to save tree: %w", err)
	}
	s.logger.Info("tree created", "tree", s.treeName, "node_id", tree.FocusedNodeID())
	return tree, nil
}

// Focus records nodeID as the focused node. The id is not validated.
func (s *Service) Focus(ctx context.Context, nodeID string) (*domain.Tree, error) {
	return s.sessions.Update(ctx, s.treeName, func(t *domain.Tree) error {
		t.SetFocus(nodeID)
		return nil
	})
}

// ReplaceTree overwrites the stored tree wholesale.
func (s *Service) ReplaceTree(ctx context.Context, tree *domain.Tree) error {
	if err := s.sessions.Save(ctx, s.treeName, tree); err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}
	return nil
}

// ListTrees returns the names of every stored tree.
func (s *Service) ListTrees(ctx context.Context) ([]string, error) {
	return s.sessions.List(ctx)
}

// DeleteTree removes the stored tree. Later reads see an empty tree.
func (s *Service) DeleteTree(ctx context.Context) error {
	return s.sessions.Delete(ctx, s.treeName)
}

// Context returns the text from the root down to nodeID ("" for an unknown node).
func (s *Service) Context(ctx context.Context, nodeID string) (string, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return "", err
	}
	return tree.BuildContext(nodeID), nil
}

// AppendUserNode adds a user-authored node under parentID, or under the
// focused node when parentID is empty, and focuses it.
func (s *Service) AppendUserNode(ctx context.Context, parentID, text string) (domain.Node, error) {
	var node domain.Node
	_, err := s.sessions.Update(ctx, s.treeName, func(t *domain.Tree) error {
		if parentID == "" {
			parentID = t.FocusedNodeID()
		}
		n, err := t.AddUserNode(parentID, text)
		if err != nil {
			return fmt.Errorf("parent %q: %w", parentID, err)
		}
		t.SetFocus(n.ID)
		node = n
		return nil
	})
	return node, err
}

// AddPlaceholders creates count loading siblings under parentID, or under the
// focused node when parentID is empty, tagged with the current sampling
// settings.
func (s *Service) AddPlaceholders(ctx context.Context, parentID string, count int) (string, []string, error) {
	stored := s.settings.Settings()
	if err := checkSiblings(count, stored.SiblingLimit()); err != nil {
		return "", nil, err
	}
	meta := stored.SamplingMeta()
	var ids []string
	_, err := s.sessions.Update(ctx, s.treeName, func(t *domain.Tree) error {
		if parentID == "" {
			parentID = t.FocusedNodeID()
		}
		var err error
		ids, err = t.AddPlaceholders(parentID, count, meta)
		if err != nil {
			return fmt.Errorf("parent %q: %w", parentID, err)
		}
		return nil
	})
	return parentID, ids, err
}

// Generate fills the given placeholders with continuations of the parent's
// context. The tree lock is not held while upstream calls are in flight:
// generation runs on a snapshot and the outcomes are applied to the latest
// stored tree afterwards, so concurrent edits survive. The batch runs to
// completion even when ctx is cancelled; each call is bounded by the
// timeout_seconds setting instead. Per-sibling failures are reported in the
// response; the error is reserved for invalid settings, oversized batches
// and persistence failures.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResponse, error) {
	settings, err := s.effectiveSettings(req.Settings)
	if err != nil {
		return domain.GenerateResponse{}, err
	}

	if err := checkSiblings(len(req.PlaceholderIDs), s.settings.Settings().SiblingLimit()); err != nil {
		return domain.GenerateResponse{}, err
	}

	snapshot, err := s.Tree(ctx)
	if err != nil {
		return domain.GenerateResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.ObserveFanout(len(req.PlaceholderIDs))
	}
	// A caller that goes away must not turn in-flight siblings into failures.
	detached := context.WithoutCancel(ctx)
	outcomes := s.orchestrator.GenerateSiblings(detached, snapshot, req.ParentNodeID, req.PlaceholderIDs, settings)

	_, err = s.sessions.Update(detached, s.treeName, func(t *domain.Tree) error {
		for _, o := range outcomes {
			t.Apply(o.ID, o)
		}
		return nil
	})
	if err != nil {
		return domain.GenerateResponse{Nodes: outcomes}, err
	}
	return domain.GenerateResponse{Nodes: outcomes}, nil
}

// GenerateFrom creates n placeholders under parentID (the focused node when
// empty; the configured sibling count when n <= 0) and generates into them.
func (s *Service) GenerateFrom(ctx context.Context, parentID string, n int, bag map[string]any) (domain.GenerateResponse, error) {
	settings, err := s.effectiveSettings(bag)
	if err != nil {
		return domain.GenerateResponse{}, err
	}
	if n <= 0 {
		n = settings.NSiblings
	}
	if n <= 0 {
		n = 1
	}

	parentID, ids, err := s.AddPlaceholders(ctx, parentID, n)
	if err != nil {
		return domain.GenerateResponse{}, err
	}
	return s.Generate(ctx, domain.GenerateRequest{
		ParentNodeID:   parentID,
		PlaceholderIDs: ids,
		NSiblings:      n,
		Settings:       bag,
	})
}

// Settings returns the stored settings.
func (s *Service) Settings() domain.Settings {
	return s.settings.Settings()
}

// UpdateSettings merges bag into the stored settings. An empty token keeps
// the stored one.
func (s *Service) UpdateSettings(bag map[string]any) (domain.Settings, error) {
	return s.settings.Update(bag)
}

func checkSiblings(n, limit int) error {
	if n > limit {
		return fmt.Errorf("%w: %d requested, limit is %d", domain.ErrTooManySiblings, n, limit)
	}
	return nil
}

// effectiveSettings overlays a per-call bag on the stored settings. The
// stored token is cleared so the generator's credential order applies
// (per-call, then environment, then stored).
func (s *Service) effectiveSettings(bag map[string]any) (domain.Settings, error) {
	base := s.settings.Settings()
	base.Token = ""
	settings, err := base.Overlay(bag)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return settings, nil
}
