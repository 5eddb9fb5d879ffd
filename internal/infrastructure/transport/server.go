package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const inspectTimeout = 2 * time.Minute

// httplog.NewLogger configures zerolog globals, so it must run only once per
// process no matter how many servers are built.
var (
	accessLogOnce sync.Once
	accessLog     zerolog.Logger
)

func accessLogger() zerolog.Logger {
	accessLogOnce.Do(func() {
		accessLog = httplog.NewLogger("shopping-agent", httplog.Options{JSON: true})
	})
	return accessLog
}

type Config struct {
	Addr             string
	Headless         bool
	MaxIterations    int
	OracleConfigured bool
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
	Version        string
}

// Server exposes the mission service over HTTP and WebSocket.
type Server struct {
	missions input.MissionService
	metrics  http.Handler
	cfg      Config
	logger   output.LoggerPort
	pages    input.PageInspector
	upgrader websocket.Upgrader
	started  time.Time
}

type Option func(*Server)

// WithPageInspector enables the one-shot navigate and analyze endpoints.
func WithPageInspector(p input.PageInspector) Option {
	return func(s *Server) { s.pages = p }
}

func NewServer(missions input.MissionService, metrics http.Handler, cfg Config, logger output.LoggerPort, opts ...Option) *Server {
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	s := &Server{
		missions: missions,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.WithField("component", "transport"),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(accessLogger()))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/api/config", s.handleConfig)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleStartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/cancel", s.handleCancel)
			r.Post("/approve", s.handleApprove)
			r.Post("/deny", s.handleDeny)
		})
	})

	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/navigate", s.handleNavigate)
		r.Post("/analyze", s.handleAnalyze)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/ws/agent", s.handleWebSocket)
	r.Get("/ws/agent/{clientID}", s.handleWebSocket)
	return r
}

// ListenAndServe serves until ctx is done and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "shopping-agent",
		"status":  "running",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":            "healthy",
		"oracle_configured": s.cfg.OracleConfigured,
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
	}
	if !s.cfg.OracleConfigured {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = "decision oracle is not configured"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"headless":          s.cfg.Headless,
		"max_iterations":    s.cfg.MaxIterations,
		"oracle_configured": s.cfg.OracleConfigured,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.missions.List())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req input.StartRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Goal) == "" || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "missing required fields: goal and url")
		return
	}

	id, events, err := s.missions.Start(context.WithoutCancel(r.Context()), req)
	if err != nil {
		s.logger.Error("Failed to start session", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Nobody streams this session; progress is read through GET.
	go func() {
		for range events {
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"session_id": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.missions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.missions.Cancel, "cancel_requested")
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.missions.Approve, "approved")
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.missions.Deny, "denied")
}

func (s *Server) control(w http.ResponseWriter, r *http.Request, op func(string) bool, status string) {
	id := chi.URLParam(r, "id")
	if _, ok := s.missions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if !op(id) {
		writeError(w, http.StatusConflict, "session is not in a state that accepts this request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": status})
}

type pageRequest struct {
	URL  string `json:"url"`
	Goal string `json:"goal"`
}

func (s *Server) decodePageRequest(w http.ResponseWriter, r *http.Request) (pageRequest, bool) {
	var req pageRequest
	if s.pages == nil {
		writeError(w, http.StatusServiceUnavailable, "page inspection is not configured")
		return req, false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "missing required field: url")
		return req, false
	}
	return req, true
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePageRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), inspectTimeout)
	defer cancel()

	info, err := s.pages.Navigate(ctx, req.URL)
	if err != nil {
		s.pageError(w, "Navigation failed", req.URL, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		input.PageInfo
	}{"success", info})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePageRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		writeError(w, http.StatusBadRequest, "missing required field: goal")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), inspectTimeout)
	defer cancel()

	analysis, err := s.pages.Analyze(ctx, req.Goal, req.URL)
	if err != nil {
		s.pageError(w, "Analysis failed", req.URL, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		input.PageAnalysis
	}{"success", analysis})
}

func (s *Server) pageError(w http.ResponseWriter, msg, url string, err error) {
	s.logger.Error(msg, "url", url, "error", err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrNavigation):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrOracleNotSet):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, msg+": "+err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
