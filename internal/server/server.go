// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the conversation store and settings documents to the
// desktop shell over a loopback HTTP API.
//
// Endpoints:
//   - GET    /conversations/index      - List filenames, newest first
//   - GET    /conversations/{filename} - Fetch one conversation
//   - POST   /conversations/{filename} - Save {"content": ...}
//   - DELETE /conversations/{filename} - Delete one conversation
//   - DELETE /conversations            - Clear all conversations
//   - GET/POST /models, DELETE /models/{modelId}
//   - GET/POST /appearance
//   - GET/POST /prompts, DELETE /prompts/{id}
//   - GET    /health                   - Store health check
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-chatstore/internal/settings"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort matches the port the desktop shell expects.
	DefaultPort = 3000

	// DefaultHost keeps the API on loopback.
	DefaultHost = "127.0.0.1"

	// MaxRequestBodySize caps request bodies (10 MiB).
	MaxRequestBodySize = 10 << 20
)

// ============================================================================
// SERVER
// ============================================================================

// Config configures a Server. Zero values take defaults.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string

	// RateLimitRPS <= 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	MaxBodyBytes int64
	Version      string
	Logger       *log.Logger
}

// Server is the HTTP API server.
type Server struct {
	cfg           Config
	conversations *storage.ConversationStore
	settings      *settings.Store
	logger        *log.Logger

	router  *http.ServeMux
	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	stopped  bool
}

// New creates a Server over the given stores.
func New(conversations *storage.ConversationStore, prefs *settings.Store, cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = MaxRequestBodySize
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		cfg:           cfg,
		conversations: conversations,
		settings:      prefs,
		logger:        cfg.Logger,
		router:        http.NewServeMux(),
	}
	s.setupRoutes()

	cors := DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.AllowedOrigins
	}
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(cors),
	}
	if cfg.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	}
	s.handler = Chain(middlewares...)(s.router)

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	// Conversations
	s.router.HandleFunc("GET /conversations/index", s.handleListConversations)
	s.router.HandleFunc("GET /conversations/{filename}", s.handleGetConversation)
	s.router.HandleFunc("POST /conversations/{filename}", s.handleSaveConversation)
	s.router.HandleFunc("DELETE /conversations/{filename}", s.handleDeleteConversation)
	s.router.HandleFunc("DELETE /conversations", s.handleClearConversations)

	// Settings documents
	s.router.HandleFunc("GET /models", s.handleGetModels)
	s.router.HandleFunc("POST /models", s.handleSaveModels)
	s.router.HandleFunc("DELETE /models/{modelId...}", s.handleDeleteModel)
	s.router.HandleFunc("GET /appearance", s.handleGetAppearance)
	s.router.HandleFunc("POST /appearance", s.handleSaveAppearance)
	s.router.HandleFunc("GET /prompts", s.handleGetPrompts)
	s.router.HandleFunc("POST /prompts", s.handleSavePrompts)
	s.router.HandleFunc("DELETE /prompts/{id}", s.handleDeletePrompt)

	s.router.HandleFunc("GET /health", s.handleHealth)
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Indexed    int    `json:"indexed"`
	Dangling   int    `json:"dangling"`
	Unindexed  int    `json:"unindexed"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

// handleHealth reports "ok", "degraded" when the index has drifted from the
// directory, or "error" with 503 when the index cannot be read.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Status: "ok", Version: s.cfg.Version}

	report, err := s.conversations.Check()
	if err != nil {
		health.Status = "error"
		health.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	health.Indexed = report.Indexed
	health.Dangling = len(report.Dangling)
	health.Unindexed = len(report.Unindexed)
	health.Duplicates = len(report.Duplicates)
	if !report.Healthy() {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          s.logger,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Printf("SERVER_START | addr=%s version=%s", ln.Addr(), s.cfg.Version)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr returns the bound address once serving, or "".
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// A Serve call that has not started yet returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
