package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"

	"github.com/leowmjw/go-timeline-annotations/pkg/hcl"
	"github.com/leowmjw/go-timeline-annotations/pkg/temporal"
	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// ContentTypeYAML is returned for ?format=yaml reads
const ContentTypeYAML = "application/yaml"

// Server represents the HTTP server for the annotation service
type Server struct {
	logger         *slog.Logger
	temporalClient client.Client
	addr           string
	taskQueue      string
	idleTimeout    time.Duration
	journalLimit   int
	metrics        *Metrics
}

// Option configures a Server
type Option func(*Server)

// WithTaskQueue sets the task queue annotation workflows are started on
func WithTaskQueue(queue string) Option {
	return func(s *Server) { s.taskQueue = queue }
}

// WithIdleTimeout closes hosted timelines after d without commands
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithJournalLimit bounds the journal kept by each workflow
func WithJournalLimit(n int) Option {
	return func(s *Server) { s.journalLimit = n }
}

// NewServer creates a new HTTP server
func NewServer(logger *slog.Logger, temporalClient client.Client, addr string, opts ...Option) *Server {
	s := &Server{
		logger:         logger,
		temporalClient: temporalClient,
		addr:           addr,
		taskQueue:      temporal.DefaultTaskQueue,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = NewMetrics()
	return s
}

// Handler returns the routed handler wrapped in the logging middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("POST /timelines/{id}", s.handleCreateTimeline)
	mux.HandleFunc("POST /timelines/{id}/commands", s.handleCommands)
	mux.HandleFunc("GET /timelines/{id}", s.handleSnapshot)
	mux.HandleFunc("GET /timelines/{id}/journal", s.handleJournal)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Timeline creation. The body is an optional definition in HCL or HCL JSON;
// ?definition=name uses a definition stored on the worker instead.
func (s *Server) handleCreateTimeline(w http.ResponseWriter, r *http.Request) {
	timelineID := r.PathValue("id")
	if timelineID == "" {
		s.respondError(w, http.StatusBadRequest, "timeline ID is required")
		return
	}

	contentType, err := hcl.DetectContentType(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	request := temporal.AnnotationRequest{
		TimelineID:     timelineID,
		DefinitionName: r.URL.Query().Get("definition"),
		JournalLimit:   s.journalLimit,
		IdleTimeout:    s.idleTimeout,
	}
	response := map[string]interface{}{
		"timeline_id": timelineID,
	}

	source := "default"
	switch {
	case len(bytes.TrimSpace(body)) > 0:
		// Validate locally so a broken definition never reaches the worker
		def, err := hcl.ParseDefinitionDocument(body, contentType)
		if err != nil {
			s.respondTimelineError(w, err)
			return
		}
		_, ix, ws, err := def.BuildWith(timeline.NewIDRegistry(), hcl.WithDefaultStartTime(time.Now()))
		if err != nil {
			s.respondTimelineError(w, err)
			return
		}
		if len(ws) > 0 {
			s.logger.Warn("Definition has warnings", "timelineID", timelineID, "count", len(ws))
			response["warnings"] = ws
		}
		response["index"] = ix
		request.Definition = &temporal.DefinitionDocument{Content: string(body), Format: contentType}
		request.DefinitionName = ""
		source = "inline"
	case request.DefinitionName != "":
		source = "stored"
	}

	s.logger.Info("Starting annotation workflow", "timelineID", timelineID, "source", source)

	workflowID := temporal.GenerateAnnotationWorkflowID(timelineID)
	run, err := s.temporalClient.ExecuteWorkflow(
		r.Context(),
		client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: s.taskQueue,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
		},
		temporal.AnnotationWorkflow,
		request,
	)
	if err != nil {
		s.logger.Error("Failed to start annotation workflow", "timelineID", timelineID, "error", err)
		s.respondTemporalError(w, err, "failed to start timeline")
		return
	}

	s.metrics.TimelinesStarted.WithLabelValues(source).Inc()
	response["workflow_id"] = run.GetID()
	response["run_id"] = run.GetRunID()
	s.respondJSON(w, http.StatusCreated, response)
}

// Command submission. Commands without an id are given one so their
// outcomes can be found in the journal.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	timelineID := r.PathValue("id")
	if timelineID == "" {
		s.respondError(w, http.StatusBadRequest, "timeline ID is required")
		return
	}

	var signal temporal.CommandSignal
	if err := json.NewDecoder(r.Body).Decode(&signal); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(signal.Commands) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one command is required")
		return
	}

	ids := make([]string, len(signal.Commands))
	for i := range signal.Commands {
		cmd := &signal.Commands[i]
		if cmd.Type == "" {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("command %d has no type", i))
			return
		}
		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}
		ids[i] = cmd.ID
	}

	s.logger.Info("Sending commands", "timelineID", timelineID, "count", len(signal.Commands))

	workflowID := temporal.GenerateAnnotationWorkflowID(timelineID)
	err := s.temporalClient.SignalWorkflow(r.Context(), workflowID, "", temporal.CommandSignalName, signal)
	if err != nil {
		s.logger.Error("Failed to signal workflow", "timelineID", timelineID, "error", err)
		s.respondTemporalError(w, err, "failed to send commands")
		return
	}

	for _, cmd := range signal.Commands {
		s.metrics.CommandsSent.WithLabelValues(string(cmd.Type)).Inc()
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":     "commands queued",
		"timeline_id": timelineID,
		"command_ids": ids,
	})
}

// Current state of a hosted timeline
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	timelineID := r.PathValue("id")
	var snap timeline.Snapshot
	if !s.query(w, r, timelineID, temporal.SnapshotQueryName, &snap) {
		return
	}
	s.respond(w, r, http.StatusOK, snap)
}

// Command outcomes, optionally only those after ?since=seq
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	timelineID := r.PathValue("id")

	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}

	var outcomes []temporal.CommandOutcome
	if !s.query(w, r, timelineID, temporal.JournalQueryName, &outcomes) {
		return
	}
	filtered := make([]temporal.CommandOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Seq > since {
			filtered = append(filtered, o)
		}
	}
	s.respond(w, r, http.StatusOK, filtered)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request, timelineID, queryType string, out interface{}) bool {
	if timelineID == "" {
		s.respondError(w, http.StatusBadRequest, "timeline ID is required")
		return false
	}

	workflowID := temporal.GenerateAnnotationWorkflowID(timelineID)
	value, err := s.temporalClient.QueryWorkflow(r.Context(), workflowID, "", queryType)
	if err != nil {
		s.logger.Error("Failed to query workflow", "timelineID", timelineID, "query", queryType, "error", err)
		s.respondTemporalError(w, err, "query failed")
		return false
	}
	if err := value.Get(out); err != nil {
		s.logger.Error("Failed to decode query result", "timelineID", timelineID, "query", queryType, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to decode query result")
		return false
	}
	return true
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Middleware for request logging and metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		// Pattern is filled in by the mux; unmatched requests share one label
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapper.statusCode)).Inc()
		s.metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", duration,
			"user_agent", r.UserAgent(),
		)
	})
}

// Response helpers
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if r.URL.Query().Get("format") != "yaml" {
		s.respondJSON(w, status, data)
		return
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		s.logger.Error("Failed to encode YAML response", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", ContentTypeYAML)
	w.WriteHeader(status)
	if _, err := w.Write(out); err != nil {
		s.logger.Error("Failed to write YAML response", "error", err)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Warn("HTTP error response", "status", status, "message", message)
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondTimelineError reports a rejected definition with its error kind
func (s *Server) respondTimelineError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if kind, ok := timeline.KindOf(err); ok {
		body["kind"] = kind.String()
	}
	s.logger.Warn("Rejected definition", "error", err)
	s.respondJSON(w, http.StatusBadRequest, body)
}

// respondTemporalError maps Temporal service errors onto HTTP statuses
func (s *Server) respondTemporalError(w http.ResponseWriter, err error, message string) {
	var notFound *serviceerror.NotFound
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case errors.As(err, &notFound):
		s.respondError(w, http.StatusNotFound, "timeline not found")
	case errors.As(err, &started):
		s.respondError(w, http.StatusConflict, "timeline already exists")
	default:
		s.respondError(w, http.StatusInternalServerError, message)
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
