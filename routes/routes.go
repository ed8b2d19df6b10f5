package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/apifactory/llm-gateway/app"
	"github.com/apifactory/llm-gateway/handlers"
	"github.com/apifactory/llm-gateway/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Model"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	predictHandler := handlers.NewPredictHandler(deps.Gateway, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.Keys, deps.Logger)
	adminHandler := handlers.NewAdminHandler(deps.Keys, deps.Trail, deps.Metrics,
		deps.ArchiveDropped(), deps.Logger)

	// Health check
	r.Get("/health", healthHandler.HandleHealth)

	// Prediction endpoint
	r.Route("/v1", func(r chi.Router) {
		r.Post("/predict", predictHandler.HandlePredict)
	})

	// Operator endpoints (admin-flagged key required)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", adminHandler.HandleStats)
		r.Get("/audit/verify", adminHandler.HandleAuditVerify)
	})

	// Prometheus exposition
	if deps.Config.Observability.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
