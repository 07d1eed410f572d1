package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/agentsflowai/agentsflow/internal/agents"
	"github.com/agentsflowai/agentsflow/internal/api"
	"github.com/agentsflowai/agentsflow/internal/auth"
	"github.com/agentsflowai/agentsflow/internal/config"
	"github.com/agentsflowai/agentsflow/internal/database"
	"github.com/agentsflowai/agentsflow/internal/events"
	"github.com/agentsflowai/agentsflow/internal/history"
	"github.com/agentsflowai/agentsflow/internal/llm"
	"github.com/agentsflowai/agentsflow/internal/memory"
	mw "github.com/agentsflowai/agentsflow/internal/middleware"
	"github.com/agentsflowai/agentsflow/internal/notify"
	"github.com/agentsflowai/agentsflow/internal/orchestrator"
	iredis "github.com/agentsflowai/agentsflow/internal/redis"
	"github.com/agentsflowai/agentsflow/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS JetStream
	eventsClient, err := events.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	authHandler := auth.NewHandler(authSvc)

	// Agent catalog and keyword router
	registry, err := agents.NewRegistry(agents.Catalog(), agents.DefaultAgentID)
	if err != nil {
		slog.Error("building agent registry", "error", err)
		os.Exit(1)
	}
	router, err := orchestrator.NewRouter(orchestrator.DefaultRules(), registry)
	if err != nil {
		slog.Error("building keyword router", "error", err)
		os.Exit(1)
	}
	agentHandler := agents.NewHandler(registry)

	// Orchestration
	store := memory.NewStore(cfg.Chat.MaxMessages)
	llmClient := llm.NewOllamaClient(cfg.LLM.BaseURL)
	repo := history.NewRepository(pool)
	publisher := events.NewPublisher(eventsClient.JetStream())

	orch := orchestrator.New(registry, router, store, llmClient, repo, publisher, orchestrator.Options{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		Timeout:       cfg.LLM.Timeout,
		ContextWindow: cfg.Chat.ContextWindow,
		FallbackReply: cfg.Chat.FallbackReply,
	})
	orchHandler := orchestrator.NewHandler(orch, repo)

	// Notification relay and WebSocket gateway
	hub := notify.NewHub(cfg.WS.SendBuffer)
	relay, err := notify.NewRelay(ctx, events.NewConsumerManager(eventsClient.JetStream()), hub)
	if err != nil {
		slog.Error("creating notification relay", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := relay.Run(ctx); err != nil {
			slog.Error("notification relay stopped", "error", err)
		}
	}()
	gateway := notify.NewGateway(hub, authSvc, notify.NewPresence(redisClient), cfg.WS)

	// Router
	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		limiter := mw.NewRateLimiter(redisClient, cfg.RateLimit.MaxReqs, cfg.RateLimit.WindowSec)
		routerCfg.ChatRateLimiter = limiter.Middleware
	}

	handler := api.NewRouter(pool, eventsClient, redisClient, routerCfg, api.HandlerSet{
		ChatMessage:        orchHandler.ChatMessage,
		ListAgents:         agentHandler.List,
		InvokeAgent:        orchHandler.InvokeAgent,
		RunPipeline:        orchHandler.RunPipeline,
		DeleteConversation: orchHandler.DeleteConversation,
		ListExecutionLogs:  orchHandler.ListExecutionLogs,

		Refresh: authHandler.Refresh,
		Logout:  authHandler.Logout,

		NotificationsWS: gateway.ServeWS,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, handler)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
