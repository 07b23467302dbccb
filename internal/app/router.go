package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pulsechat/pulsechat/internal/auth"
	"github.com/pulsechat/pulsechat/internal/chat"
	"github.com/pulsechat/pulsechat/internal/observability"
	"github.com/pulsechat/pulsechat/internal/realtime"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	AuthMiddleware auth.Middleware
	ChatHandler    *chat.Handler
	WSHandler      *realtime.WSHandler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	requireAuth := params.AuthMiddleware.RequireAuth

	r.Group(func(r chi.Router) {
		for _, mw := range APIMiddlewares(MiddlewareConfig{Config: params.Config}) {
			r.Use(mw)
		}

		r.Route("/api/auth", func(r chi.Router) {
			r.Use(AuthRateLimiter())
			params.AuthHandler.MountRoutes(r, requireAuth)
		})
		r.Route("/api/message", func(r chi.Router) {
			r.Use(requireAuth)
			params.ChatHandler.MountRoutes(r)
		})
	})

	if params.WSHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/ws", params.WSHandler.ServeHTTP)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
