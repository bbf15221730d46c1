// Package http implements the REST API of EcoQuest: student progress and
// preferences, story mode, weekly challenges, the leaderboard, the eco
// assistant and the editorial endpoints for educators. Authentication is
// delegated to the identity provider; this layer only verifies tokens and
// translates domain errors into HTTP statuses.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecoquest-hub/ecoquest-hub/internal/application/command"
	"github.com/ecoquest-hub/ecoquest-hub/internal/application/query"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/assistant"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains the HTTP server settings.
type Config struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute is per client IP; 0 disables the limiter.
	RateLimitPerMinute int

	// MaxUploadBytes caps multipart bodies on the avatar endpoint.
	MaxUploadBytes int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		MaxUploadBytes:     8 << 20,
	}
}

// Address returns the host:port the server binds to.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies are the application handlers the server routes to.
// A nil handler turns its endpoints into 501 responses, which keeps partial
// deployments (worker-only, read-only) possible.
type Dependencies struct {
	Progress    *query.GetProgressHandler
	Story       *query.GetStoryHandler
	Challenges  *query.GetChallengesHandler
	Leaderboard *query.GetLeaderboardHandler

	CompleteTask     *command.CompleteTaskHandler
	CompleteEpisode  *command.CompleteEpisodeHandler
	JoinChallenge    *command.JoinChallengeHandler
	AdvanceChallenge *command.AdvanceChallengeHandler
	RecordActivity   *command.RecordActivityHandler
	UpdatePrefs      *command.UpdatePreferencesHandler
	UpdateAvatar     *command.UpdateAvatarHandler

	Preferences profile.PreferencesRepository
	Episodes    content.EpisodeRepository
	Tasks       content.TaskRepository
	Board       leaderboard.Repository

	Assistant *assistant.Matcher
	Identity  IdentityVerifier

	Health HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the EcoQuest REST API server.
type Server struct {
	config  Config
	deps    Dependencies
	logger  *logger.Logger
	limiter *rateLimiter
	httpSrv *http.Server
}

// NewServer creates the server and mounts all routes.
func NewServer(cfg Config, deps Dependencies, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: log.With(logger.Component("http")),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute)
	}

	s.httpSrv = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.config.EnableCORS {
		r.Use(s.corsMiddleware)
	}
	r.Use(s.rateLimitMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/me/progress", s.handleProgress)
		r.Get("/me/preferences", s.handleGetPreferences)
		r.Put("/me/preferences", s.handleUpdatePreferences)
		r.Post("/me/avatar", s.handleUploadAvatar)
		r.Post("/me/activity", s.handleRecordActivity)

		r.Get("/leaderboard", s.handleLeaderboard)

		r.Get("/story", s.handleStory)
		r.Post("/episodes/{id}/complete", s.handleCompleteEpisode)

		r.Get("/challenges", s.handleChallenges)
		r.Post("/challenges/{id}/join", s.handleJoinChallenge)
		r.Post("/challenges/{id}/advance", s.handleAdvanceChallenge)

		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks/{id}/complete", s.handleCompleteTask)

		r.Post("/assistant", s.handleAssistant)
		r.Post("/auth/logout", s.handleLogout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireEducator)
			r.Put("/episodes/{id}", s.handleUpsertEpisode)
			r.Get("/leaderboard/snapshots", s.handleListSnapshots)
			r.Get("/leaderboard/snapshots/{id}", s.handleGetSnapshot)
		})
	})

	return r
}

// Start blocks serving requests until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server starting", logger.String("address", s.config.Address()))

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine and reports fatal errors on
// the returned channel.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()
	return errCh
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")

	if s.limiter != nil {
		s.limiter.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"service": "ecoquest-hub",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			writeJSONErrorWithDetails(w, r, http.StatusServiceUnavailable,
				"unhealthy", "dependency check failed", err.Error())
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.handleHealth(w, r)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}
