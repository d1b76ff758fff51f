// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"github.com/ThinkInAIXYZ/go-mcp/transport"
	"go.uber.org/zap"

	"mcp-food-log/internal/config"
	"mcp-food-log/internal/nutrition"
	"mcp-food-log/internal/portions"
	"mcp-food-log/internal/recognition"
	"mcp-food-log/internal/storage"
	"mcp-food-log/internal/tracker"
)

const Version = "1.0.0"

var ErrInvalidArgument = errors.New("invalid argument")

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type FoodLogServer struct {
	server     *server.Server
	httpServer *http.Server
	storage    *storage.SQLiteStorage
	portions   *portions.Table
	fetcher    tracker.Fetcher
	recognizer tracker.Recognizer
	tools      map[string]toolHandler
	config     *config.Config
	logger     *zap.Logger

	// calls on one session run one at a time; different sessions don't wait on each other
	locks sessionLocks

	// parent of MCP tool calls, which carry no request context of their own
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewFoodLogServer(cfg *config.Config, logger *zap.Logger) (*FoodLogServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table := portions.New(portions.Default())
	if cfg.PortionsFile != "" {
		loaded, err := portions.LoadFile(cfg.PortionsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load portions: %w", err)
		}
		table = loaded
	}

	// Initialize session journal
	stor, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	foodServer := &FoodLogServer{
		storage:  stor,
		portions: table,
		fetcher: nutrition.NewClient(
			nutrition.WithBaseURL(cfg.OFFBaseURL),
			nutrition.WithUserAgent(cfg.UserAgent),
			nutrition.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			nutrition.WithLogger(logger.Named("nutrition")),
		),
		recognizer: recognition.Stub(),
		config:     cfg,
		logger:     logger,
	}
	foodServer.baseCtx, foodServer.cancel = context.WithCancel(context.Background())

	// SSE transport served from our own mux
	mcpLogger := logger.Named("mcp").Sugar()
	trans, sseHandler, err := transport.NewSSEServerTransportAndHandler(
		cfg.MessageURL(),
		transport.WithSSEServerTransportAndHandlerOptionLogger(mcpLogger),
	)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to create SSE transport: %w", err)
	}

	mcpServer, err := server.NewServer(
		trans,
		server.WithServerInfo(protocol.Implementation{
			Name:    "food-log",
			Version: Version,
		}),
		server.WithLogger(mcpLogger),
	)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	foodServer.server = mcpServer

	foodServer.registerTools()

	mux := http.NewServeMux()
	mux.Handle(config.SSEPath, sseHandler.HandleSSE())
	mux.Handle(config.MessagePath, sseHandler.HandleMessage())
	mux.HandleFunc("/", foodServer.handleHTTP)

	foodServer.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	return foodServer, nil
}

// Handler exposes the tool endpoint and the SSE transport, mainly for tests.
func (s *FoodLogServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleHTTP serves the plain JSON tool endpoint: a POSTed CallToolRequest
// answered directly with its CallToolResult.
func (s *FoodLogServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		s.logger.Debug("tool call failed", zap.String("tool", request.Name), zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// mcpTool adapts a handler for the MCP server. Failures become error
// results so the client sees the message instead of a JSON-RPC internal error.
func (s *FoodLogServer) mcpTool(name string, h toolHandler) server.ToolHandlerFunc {
	return func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		result, err := h(s.baseCtx, req)
		if err != nil {
			s.logger.Debug("mcp tool call failed", zap.String("tool", name), zap.Error(err))
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.TextContent{Type: "text", Text: err.Error()}},
				IsError: true,
			}, nil
		}
		return result, nil
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *FoodLogServer) Start(ctx context.Context) error {
	s.logger.Info("starting food log server",
		zap.String("addr", s.httpServer.Addr),
		zap.String("sse", config.SSEPath),
		zap.String("message_url", s.config.MessageURL()))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains MCP calls and closes the SSE streams before shutting down
// HTTP, since open streams would otherwise hold the HTTP shutdown.
func (s *FoodLogServer) Stop(ctx context.Context) error {
	var shutdownErr error
	if s.server != nil {
		shutdownErr = s.server.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}

func (s *FoodLogServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
