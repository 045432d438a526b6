package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/taskbridge/taskbridge/internal/config"
	"github.com/taskbridge/taskbridge/internal/sync"
	"github.com/taskbridge/taskbridge/internal/user"
	"github.com/taskbridge/taskbridge/pkg/cerr"
	"github.com/taskbridge/taskbridge/pkg/clog"
)

// Server exposes the admin HTTP surface: health, a one-shot sync trigger and
// the onboarding schema check. It is not the sync path; the scheduler and
// workers run independently of it.
type Server struct {
	server *http.Server
	env    *config.Env
	engine *sync.Engine
	users  user.Repository
	notion sync.NotionFactory
}

func NewServer(env *config.Env, engine *sync.Engine, users user.Repository, notionFactory sync.NotionFactory) *Server {
	return &Server{
		env:    env,
		engine: engine,
		users:  users,
		notion: notionFactory,
	}
}

// ListenAndServe starts the HTTP server. The provided context is the base
// context for all incoming requests, so cancelling it on shutdown also
// cancels any sync triggered through the API.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware())
		r.Post("/sync/{email}", s.handleSync)
		r.Get("/validate/{email}", s.handleValidate)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.WriteJSONError(r.Context(), w, cerr.NewError(cerr.NotFound, "not found", nil))
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.apiKeyMiddleware(mux)),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleSync runs one cycle for the user right now, bypassing the scheduler.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "email")

	stats, err := s.engine.SyncUser(ctx, email)
	if err != nil {
		cerr.WriteJSONError(ctx, w, err)
		return
	}
	cerr.WriteJSON(ctx, w, stats)
}

// handleValidate checks the user's Notion database schema so onboarding can
// tell whether a sync would work before enabling it.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "email")

	u, err := s.users.Get(ctx, email)
	if err != nil {
		cerr.WriteJSONError(ctx, w, err)
		return
	}
	if err := s.notion(u.NotionAccessToken).EnsureSchema(ctx, u.DatabaseID); err != nil {
		cerr.WriteJSONError(ctx, w, err)
		return
	}
	cerr.WriteJSON(ctx, w, map[string]string{"status": "ok"})
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for the health endpoint.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
