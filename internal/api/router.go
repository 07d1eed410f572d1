package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/agentsflowai/agentsflow/internal/database"
	"github.com/agentsflowai/agentsflow/internal/events"
	mw "github.com/agentsflowai/agentsflow/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Chat and orchestration
	ChatMessage        http.HandlerFunc
	ListAgents         http.HandlerFunc
	InvokeAgent        http.HandlerFunc
	RunPipeline        http.HandlerFunc
	DeleteConversation http.HandlerFunc
	ListExecutionLogs  http.HandlerFunc

	// Token lifecycle
	Refresh http.HandlerFunc
	Logout  http.HandlerFunc

	// Notification stream
	NotificationsWS http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	ChatRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, redisClient *goredis.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200 with no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB, Redis and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["redis"] = "not configured"
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket notification stream; authenticates with a token query
	// parameter, so it sits outside the bearer-header middleware
	r.Get("/ws/notifications", h.NotificationsWS)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Token lifecycle (public refresh, protected logout)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/refresh", h.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/chat", func(r chi.Router) {
				if cfg.ChatRateLimiter != nil {
					r.Use(cfg.ChatRateLimiter)
				}
				r.Post("/message", h.ChatMessage)
			})

			r.Route("/agents", func(r chi.Router) {
				r.Get("/", h.ListAgents)
				r.Post("/invoke", h.InvokeAgent)
				r.Post("/pipeline", h.RunPipeline)
			})

			r.Route("/conversations/{conversationID}", func(r chi.Router) {
				r.Delete("/", h.DeleteConversation)
				r.Get("/logs", h.ListExecutionLogs)
			})
		})
	})

	return r
}
