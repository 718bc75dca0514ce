package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/virtuoso"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ValidationResponse is the structured result of validate_composition.
type ValidationResponse struct {
	Valid  bool     `json:"valid" jsonschema_description:"True when the composition can be played"`
	Errors []string `json:"errors" jsonschema_description:"Configuration errors, one per defect"`
}

// PlayResponse is the structured result of play_composition.
type PlayResponse struct {
	PerformanceID string `json:"performanceId" jsonschema_description:"Identifier of the started performance"`
	CompositionID string `json:"compositionId" jsonschema_description:"Identifier of the played composition"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    *virtuoso.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine *virtuoso.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("virtuoso-mcp", strings.TrimSpace(virtuoso.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
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
	s.mcpServer.AddTool(mcp.NewTool("list_compositions",
		mcp.WithDescription("List the stored compositions."),
	), s.handleListCompositions)

	validateTool := mcp.NewTool("validate_composition",
		mcp.WithDescription("Validate a composition given as JSON without storing or playing it."),
		mcp.WithString("composition", mcp.Required(), mcp.Description("The composition document as JSON")),
		mcp.WithOutputSchema[ValidationResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	playTool := mcp.NewTool("play_composition",
		mcp.WithDescription("Start a performance of a stored composition. Poll get_performance for the outcome."),
		mcp.WithString("composition_id", mcp.Required(), mcp.Description("Identifier of the stored composition")),
		mcp.WithOutputSchema[PlayResponse](),
	)
	s.mcpServer.AddTool(playTool, mcp.NewStructuredToolHandler(s.handlePlay))

	s.mcpServer.AddTool(mcp.NewTool("get_performance",
		mcp.WithDescription("Get a live or finished performance with its per-stanza results."),
		mcp.WithString("performance_id", mcp.Required(), mcp.Description("Identifier of the performance")),
	), s.handleGetPerformance)

	s.mcpServer.AddTool(mcp.NewTool("stop_performance",
		mcp.WithDescription("Stop a running performance. Remaining stanzas are reported as skipped."),
		mcp.WithString("performance_id", mcp.Required(), mcp.Description("Identifier of the performance")),
	), s.handleStop)
}

func (s *Server) handleListCompositions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Stanzas int    `json:"stanzas"`
	}
	list := []entry{}
	for _, c := range s.engine.Compositions.Load(ctx) {
		list = append(list, entry{ID: c.ID, Name: c.Name, Stanzas: len(c.Stanzas)})
	}
	jsonBytes, _ := json.Marshal(list)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidationResponse, error) {
	raw, _ := args["composition"].(string)
	var comp domain.Composition
	if err := json.Unmarshal([]byte(raw), &comp); err != nil {
		return ValidationResponse{}, fmt.Errorf("invalid composition document: %w", err)
	}

	resp := ValidationResponse{Valid: true, Errors: []string{}}
	if err := s.engine.Validate(&comp); err != nil {
		resp.Valid = false
		for _, e := range schema.ValidationErrors(err) {
			resp.Errors = append(resp.Errors, e.Error())
		}
		if len(resp.Errors) == 0 {
			resp.Errors = append(resp.Errors, err.Error())
		}
	}
	return resp, nil
}

func (s *Server) handlePlay(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PlayResponse, error) {
	id, _ := args["composition_id"].(string)
	run, err := s.engine.Start(ctx, id)
	if err != nil {
		s.logger.Warn("MCP play rejected", "composition_id", id, "err", err)
		return PlayResponse{}, fmt.Errorf("play failed: %w", err)
	}
	return PlayResponse{PerformanceID: run.ID(), CompositionID: id}, nil
}

func (s *Server) handleGetPerformance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("performance_id", "")
	perf, ok := s.engine.Performance(ctx, id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("performance %s not found", id)), nil
	}
	jsonBytes, _ := json.Marshal(perf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("performance_id", "")
	if err := s.engine.Stop(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("performance %s stopped", id)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("virtuoso://templates", "Stanza Templates",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.AllTemplates(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to encode templates: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "virtuoso://templates",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
