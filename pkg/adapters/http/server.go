package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/virtuoso"
	"github.com/aretw0/virtuoso/pkg/composer"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingester accepts events reported by the outer transport process.
type Ingester interface {
	Ingest(ev domain.Inbound) error
}

// CommandSource streams commands for the outer transport process.
type CommandSource interface {
	Listen() (<-chan domain.Command, func())
}

// Server exposes an Engine over HTTP.
type Server struct {
	Engine   *virtuoso.Engine
	Events   Ingester
	Commands CommandSource
	Recorder *composer.Recorder
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithBridge exposes the command/event boundary on /commands and /events.
func WithBridge(events Ingester, commands CommandSource) Option {
	return func(s *Server) {
		s.Events = events
		s.Commands = commands
	}
}

// WithRecorder exposes recording controls under /recording.
func WithRecorder(r *composer.Recorder) Option {
	return func(s *Server) {
		s.Recorder = r
	}
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine *virtuoso.Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/compositions", func(r chi.Router) {
		r.Get("/", s.ListCompositions)
		r.Post("/", s.SaveComposition)
		r.Post("/validate", s.ValidateComposition)
		r.Get("/{id}", s.GetComposition)
		r.Delete("/{id}", s.DeleteComposition)
		r.Post("/{id}/play", s.PlayComposition)
	})
	r.Route("/performances", func(r chi.Router) {
		r.Get("/", s.ListPerformances)
		r.Get("/{id}", s.GetPerformance)
		r.Post("/{id}/stop", s.StopPerformance)
	})
	r.Get("/templates", s.ListTemplates)

	if s.Events != nil {
		r.Post("/events", s.PostEvent)
	}
	if s.Commands != nil {
		r.Get("/commands", s.SubscribeCommands)
	}
	if s.Recorder != nil {
		r.Route("/recording", func(r chi.Router) {
			r.Get("/", s.GetRecording)
			r.Post("/start", s.StartRecording)
			r.Post("/stop", s.StopRecording)
			r.Post("/cancel", s.CancelRecording)
		})
	}
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
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

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "virtuoso-http",
		"version": strings.TrimSpace(virtuoso.Version),
	})
}

// ListCompositions handles GET /compositions.
func (s *Server) ListCompositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"compositions": s.Engine.Compositions.Load(r.Context()),
	})
}

// GetComposition handles GET /compositions/{id}.
func (s *Server) GetComposition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	comp, ok := s.Engine.Compositions.Get(r.Context(), id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("composition %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, comp)
}

// SaveComposition handles POST /compositions.
func (s *Server) SaveComposition(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.decodeComposition(w, r)
	if !ok {
		return
	}
	if err := s.Engine.SaveComposition(r.Context(), comp); err != nil {
		s.writeValidation(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, comp)
}

// ValidateComposition handles POST /compositions/validate.
func (s *Server) ValidateComposition(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.decodeComposition(w, r)
	if !ok {
		return
	}
	if err := s.Engine.Validate(comp); err != nil {
		s.writeValidation(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// DeleteComposition handles DELETE /compositions/{id}.
func (s *Server) DeleteComposition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Engine.Compositions.Delete(r.Context(), id) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("composition %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlayComposition handles POST /compositions/{id}/play. The run continues in the background.
func (s *Server) PlayComposition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.Engine.Start(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeValidation(w, err)
		return
	}
	s.Logger.Info("performance requested", "composition_id", id, "performance_id", run.ID())
	s.writeJSON(w, http.StatusAccepted, map[string]string{"performanceId": run.ID()})
}

// ListPerformances handles GET /performances.
func (s *Server) ListPerformances(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"performances": s.Engine.Performances.Load(r.Context()),
		"active":       s.Engine.Active(),
	})
}

// GetPerformance handles GET /performances/{id}.
func (s *Server) GetPerformance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	perf, ok := s.Engine.Performance(r.Context(), id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("performance %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, perf)
}

// StopPerformance handles POST /performances/{id}/stop.
func (s *Server) StopPerformance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.Stop(id); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListTemplates handles GET /templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"templates": s.Engine.AllTemplates(r.Context())})
}

// PostEvent handles POST /events from the outer transport process.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Inbound
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.Events.Ingest(ev); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrAccountNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SubscribeCommands handles the GET /commands request (SSE).
func (s *Server) SubscribeCommands(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeCommands: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	cmds, detach := s.Commands.Listen()
	defer detach()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case cmd := <-cmds:
			data, err := json.Marshal(cmd)
			if err != nil {
				s.Logger.Error("command encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", cmd.Kind, data)
			flusher.Flush()
		}
	}
}

// GetRecording handles GET /recording.
func (s *Server) GetRecording(w http.ResponseWriter, r *http.Request) {
	st := s.Recorder.State()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"recording": st.Recording,
		"startedAt": st.StartedAt,
		"stanzas":   st.Stanzas,
		"accounts":  st.Accounts,
	})
}

// StartRecording handles POST /recording/start. Starting twice is a no-op.
func (s *Server) StartRecording(w http.ResponseWriter, r *http.Request) {
	s.Recorder.Start()
	w.WriteHeader(http.StatusNoContent)
}

// StopRecording handles POST /recording/stop and stores the recorded composition.
func (s *Server) StopRecording(w http.ResponseWriter, r *http.Request) {
	var meta composer.Meta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	comp, ok := s.Recorder.Stop(meta)
	if !ok {
		s.writeError(w, http.StatusConflict, errors.New("nothing was recorded"))
		return
	}
	if err := s.Engine.SaveComposition(r.Context(), comp); err != nil {
		s.writeValidation(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, comp)
}

// CancelRecording handles POST /recording/cancel.
func (s *Server) CancelRecording(w http.ResponseWriter, r *http.Request) {
	s.Recorder.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeComposition(w http.ResponseWriter, r *http.Request) (*domain.Composition, bool) {
	var comp domain.Composition
	if err := json.NewDecoder(r.Body).Decode(&comp); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		s.Logger.Warn("invalid composition body", "err", err)
		return nil, false
	}
	return &comp, true
}

func (s *Server) writeValidation(w http.ResponseWriter, err error) {
	if !schema.IsConfigurationError(err) {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	details := []string{}
	for _, e := range schema.ValidationErrors(err) {
		details = append(details, e.Error())
	}
	s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":   "invalid composition",
		"details": details,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
