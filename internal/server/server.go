package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/heartguard/heartguard-api/internal/config"
	appmiddleware "github.com/heartguard/heartguard-api/internal/middleware"
	"github.com/heartguard/heartguard-api/internal/modules/admin"
	"github.com/heartguard/heartguard-api/internal/modules/user"
	"github.com/heartguard/heartguard-api/internal/session"
	"golang.org/x/time/rate"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Users    user.Service
	Admin    admin.Service
	Sessions *session.Manager
}

// New creates and configures the router. ctx bounds background work such as
// rate limiter cleanup.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, deps *Deps) (chi.Router, error) {
	limiter := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies); err != nil {
		return nil, err
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Use(limiter.LimitPrefix("/auth/"))

	apiConfig := huma.DefaultConfig("HeartGuard API", "1.0.0")
	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"session": {
			Type: "apiKey",
			In:   "cookie",
			Name: session.CookieName,
		},
	}
	api := humachi.New(router, apiConfig)

	requireSession := appmiddleware.RequireSession(deps.Sessions, log)
	optionalSession := appmiddleware.OptionalSession(deps.Sessions, log)
	requireAdmin := appmiddleware.RequireAdmin(deps.Sessions, log)

	user.NewHandler(deps.Users, deps.Sessions, log).RegisterRoutes(api, requireSession, optionalSession)
	if deps.Admin != nil {
		admin.NewHandler(deps.Admin, log).RegisterRoutes(api, requireAdmin)
	}

	// Register a simple health check endpoint.
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health Check",
		Description: "Responds with the server's health status.",
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		}
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status"`
			}
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})

	return router, nil
}
