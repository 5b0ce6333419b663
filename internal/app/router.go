package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/accountd/accountd/internal/platform/httpx"
	"github.com/accountd/accountd/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	UsersHandler *users.Handler
	Pool         *pgxpool.Pool
	Redis        *redis.Client
}

// NewRouter assembles the middleware chain and mounts all routes.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(p.Logger, p.Config) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		if p.Pool != nil {
			if err := p.Pool.Ping(req.Context()); err != nil {
				p.Logger.Error("health check: postgres ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "postgres": "down"})
				return
			}
		}
		if p.Redis != nil {
			if err := p.Redis.Ping(req.Context()).Err(); err != nil {
				status["redis"] = "down"
			}
		}
		httpx.JSON(w, http.StatusOK, status)
	})

	r.Route("/api", func(api chi.Router) {
		p.UsersHandler.MountRoutes(api)
	})

	return r
}
