package api

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/knockmap/knockmap/internal/engine"
	"github.com/knockmap/knockmap/internal/live"
)

// Server serves the dashboard pages and the JSON API.
type Server struct {
	engine   *engine.Engine
	logger   *slog.Logger
	port     int
	server   *http.Server
	assets   fs.FS
	version  string
	validate *validator.Validate
	hub      *live.Hub

	targetsPage *template.Template
	boardPage   *template.Template
}

// Option configures the server.
type Option func(*Server)

// WithAssets sets the filesystem holding templates/ and static/.
func WithAssets(fsys fs.FS) Option {
	return func(s *Server) {
		s.assets = fsys
	}
}

// WithVersion sets the build version reported by /api/version.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithHub enables live board refresh over /ws.
func WithHub(h *live.Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// New creates a server. Pages are only served when assets are set.
func New(eng *engine.Engine, logger *slog.Logger, port int, opts ...Option) (*Server, error) {
	s := &Server{
		engine:   eng,
		logger:   logger,
		port:     port,
		version:  "dev",
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assets != nil {
		if err := s.parseTemplates(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return requestID(requestLogger(s.logger, mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting dashboard server", "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/targets", s.handleGetTargets)
	mux.HandleFunc("POST /api/targets", s.handleSaveTargets)
	mux.HandleFunc("GET /api/markets", s.handleGetMarkets)
	mux.HandleFunc("POST /api/markets", s.handleSaveMarkets)
	mux.HandleFunc("GET /api/board/{channel}", s.handleGetBoard)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}

	if s.assets == nil {
		return
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/targets", http.StatusFound)
	})
	mux.HandleFunc("GET /targets", s.handleTargetsPage)
	mux.HandleFunc("POST /targets", s.handleTargetsSubmit)
	mux.HandleFunc("POST /markets", s.handleMarketsSubmit)
	mux.HandleFunc("GET /appointments/{channel}", s.handleBoardPage)
	mux.Handle("GET /static/", http.FileServer(http.FS(s.assets)))
}

// published announces the data version after a save.
func (s *Server) published() int64 {
	v := s.engine.DataVersion()
	if s.hub != nil {
		s.hub.Publish(v)
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		jsonResponse(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, VersionResponse{Version: s.version, DataVersion: s.engine.DataVersion()})
}
