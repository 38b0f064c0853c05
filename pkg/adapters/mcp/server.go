package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/lyramakesmusic/wool"
	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TreeURI is the resource exposing the whole tree as JSON.
const TreeURI = "wool://tree"

// Service is the part of wool.Service the MCP server drives.
type Service interface {
	Tree(ctx context.Context) (*domain.Tree, error)
	CreateTree(ctx context.Context, seed string) (*domain.Tree, error)
	Focus(ctx context.Context, nodeID string) (*domain.Tree, error)
	Context(ctx context.Context, nodeID string) (string, error)
	AppendUserNode(ctx context.Context, parentID, text string) (domain.Node, error)
	GenerateFrom(ctx context.Context, parentID string, n int, bag map[string]any) (domain.GenerateResponse, error)
}

// TreeSummary is what tree-changing tools report back.
type TreeSummary struct {
	FocusedNodeID string `json:"focused_node_id" jsonschema_description:"The focused node"`
	Nodes         int    `json:"nodes" jsonschema_description:"Number of nodes in the tree"`
	Context       string `json:"context" jsonschema_description:"Text from the root to the focused node"`
}

// ContextResponse carries the assembled context of one node.
type ContextResponse struct {
	NodeID  string `json:"node_id"`
	Context string `json:"context" jsonschema_description:"Concatenated text from the root down to the node"`
}

type createArgs struct {
	Seed string `json:"seed"`
}

type focusArgs struct {
	NodeID string `json:"node_id"`
}

type appendArgs struct {
	Text         string `json:"text"`
	ParentNodeID string `json:"parent_node_id"`
}

type generateArgs struct {
	ParentNodeID string  `json:"parent_node_id"`
	NSiblings    float64 `json:"n_siblings"`
	Settings     string  `json:"settings"`
}

type contextArgs struct {
	NodeID string `json:"node_id"`
}

// Server exposes the tree and generation over the Model Context Protocol.
type Server struct {
	service   Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		service: svc,
		mcpServer: server.NewMCPServer("wool-mcp", strings.TrimSpace(wool.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the protocol over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_tree",
		mcp.WithDescription("Start a new tree from seed text, replacing the current one."),
		mcp.WithString("seed", mcp.Required(), mcp.Description("Text of the root node")),
		mcp.WithOutputSchema[TreeSummary](),
	), mcp.NewStructuredToolHandler(s.handleCreateTree))

	s.mcpServer.AddTool(mcp.NewTool("focus_node",
		mcp.WithDescription("Focus a node. Generation and appends default to the focused node."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to focus")),
		mcp.WithOutputSchema[TreeSummary](),
	), mcp.NewStructuredToolHandler(s.handleFocus))

	s.mcpServer.AddTool(mcp.NewTool("append_text",
		mcp.WithDescription("Append user-written text as a child node and focus it."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to append, including any leading space")),
		mcp.WithString("parent_node_id", mcp.Description("Parent node (default: focused node)")),
		mcp.WithOutputSchema[TreeSummary](),
	), mcp.NewStructuredToolHandler(s.handleAppend))

	s.mcpServer.AddTool(mcp.NewTool("generate",
		mcp.WithDescription("Generate sibling continuations of a node in parallel. Each sibling succeeds or fails on its own."),
		mcp.WithString("parent_node_id", mcp.Description("Node to continue (default: focused node)")),
		mcp.WithNumber("n_siblings", mcp.Min(0), mcp.Description("Number of continuations (default: configured n_siblings, capped by max_siblings)")),
		mcp.WithString("settings", mcp.Description(`JSON object of per-call settings, e.g. {"temperature": 1.1}`)),
		mcp.WithOutputSchema[domain.GenerateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGenerate))

	s.mcpServer.AddTool(mcp.NewTool("get_context",
		mcp.WithDescription("Get the text from the root down to a node."),
		mcp.WithString("node_id", mcp.Description("Node to read (default: focused node)")),
		mcp.WithOutputSchema[ContextResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetContext))
}

func (s *Server) summary(tree *domain.Tree) TreeSummary {
	focused := tree.FocusedNodeID()
	return TreeSummary{
		FocusedNodeID: focused,
		Nodes:         tree.Len(),
		Context:       tree.BuildContext(focused),
	}
}

func (s *Server) handleCreateTree(ctx context.Context, request mcp.CallToolRequest, args createArgs) (TreeSummary, error) {
	tree, err := s.service.CreateTree(ctx, args.Seed)
	if err != nil {
		return TreeSummary{}, fmt.Errorf("create failed: %w", err)
	}
	return s.summary(tree), nil
}

func (s *Server) handleFocus(ctx context.Context, request mcp.CallToolRequest, args focusArgs) (TreeSummary, error) {
	tree, err := s.service.Focus(ctx, args.NodeID)
	if err != nil {
		return TreeSummary{}, fmt.Errorf("focus failed: %w", err)
	}
	return s.summary(tree), nil
}

func (s *Server) handleAppend(ctx context.Context, request mcp.CallToolRequest, args appendArgs) (TreeSummary, error) {
	if _, err := s.service.AppendUserNode(ctx, args.ParentNodeID, args.Text); err != nil {
		return TreeSummary{}, fmt.Errorf("append failed: %w", err)
	}
	tree, err := s.service.Tree(ctx)
	if err != nil {
		return TreeSummary{}, err
	}
	return s.summary(tree), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest, args generateArgs) (domain.GenerateResponse, error) {
	var bag map[string]any
	if args.Settings != "" {
		if err := json.Unmarshal([]byte(args.Settings), &bag); err != nil {
			return domain.GenerateResponse{}, fmt.Errorf("settings must be a JSON object: %w", err)
		}
	}

	n := args.NSiblings
	if math.IsNaN(n) || n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
		return domain.GenerateResponse{}, fmt.Errorf("n_siblings must be a non-negative integer, got %v", n)
	}

	resp, err := s.service.GenerateFrom(ctx, args.ParentNodeID, int(n), bag)
	if err != nil {
		s.logger.Error("MCP generate failed", "err", err)
		return domain.GenerateResponse{}, fmt.Errorf("generate failed: %w", err)
	}
	return resp, nil
}

func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest, args contextArgs) (ContextResponse, error) {
	nodeID := args.NodeID
	if nodeID == "" {
		tree, err := s.service.Tree(ctx)
		if err != nil {
			return ContextResponse{}, err
		}
		nodeID = tree.FocusedNodeID()
	}
	text, err := s.service.Context(ctx, nodeID)
	if err != nil {
		return ContextResponse{}, err
	}
	return ContextResponse{NodeID: nodeID, Context: text}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TreeURI, "Current Tree",
		mcp.WithResourceDescription("All nodes and the focused node id"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tree, err := s.service.Tree(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load tree: %w", err)
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tree: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TreeURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
