package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/sqlgym/internal/auth"
	"github.com/terra-clan/sqlgym/internal/catalog"
	"github.com/terra-clan/sqlgym/internal/config"
	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/solving"
	"github.com/terra-clan/sqlgym/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	repo           storage.Repository
	catalog        *catalog.Catalog
	solver         *solving.Manager
	avatars        filestore.Store
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	repo storage.Repository,
	cat *catalog.Catalog,
	solver *solving.Manager,
	authService *auth.Auth,
	avatars filestore.Store,
) *Server {
	s := &Server{
		config:         cfg,
		repo:           repo,
		catalog:        cat,
		solver:         solver,
		avatars:        avatars,
		authMiddleware: NewAuthMiddleware(authService, repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks and static avatars are public
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/avatars/{file}", s.handleAvatarFile)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/token", s.handleToken)

		// Everything else requires a bearer token
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)

			r.Route("/task", func(r chi.Router) {
				r.Get("/all", s.handleListTasks)
				r.Post("/start/{taskID}", s.handleStartTask)
				r.Post("/solve/{sessionID}", s.handleSolve)
				r.Get("/{sessionID}", s.handleGetSession)
				r.Post("/{sessionID}/execute", s.handleExecute)
				r.Get("/{sessionID}/visualize", s.handleVisualize)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/me", s.handleMe)
				r.Patch("/profile", s.handleUpdateProfile)
				r.Post("/avatar", s.handleUploadAvatar)
				r.Get("/progress/{username}", s.handleProgress)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.authMiddleware.RequireAdmin)
				r.Post("/tasks", s.handleUploadTask)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
