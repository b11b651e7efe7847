package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelproxy/sentinel/internal/app"
	"github.com/sentinelproxy/sentinel/internal/config"
	"github.com/sentinelproxy/sentinel/internal/middleware"
)

// NewRouter builds the full HTTP surface: /status and /check_gate at the
// root, everything else nested under /v1, plus /metrics for prometheus
// scraping.
func NewRouter(a *app.App, corsCfg config.CORSConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Logger(a.Logger))
	r.Use(middleware.Metrics(func(req *http.Request) string {
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			return rc.RoutePattern()
		}
		return req.URL.Path
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           corsCfg.MaxAge,
	}))

	h := NewHandlers(a)

	r.Get("/status", h.Status)
	r.Get("/check_gate", h.CheckGate)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/chat/completions", h.ChatCompletions)
		v1.Post("/config/limit", h.SetLimit)
		v1.Post("/config/reset_cost", h.ResetCost)
		v1.Get("/sessions/{session_id}/messages", h.SessionMessages)
		v1.Get("/admin/refresh_prices", h.RefreshPrices)
		v1.Get("/ws", h.WebSocket)
	})

	a.Logger.Info("router configured")
	return r
}
