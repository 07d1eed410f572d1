//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agentsflowai/agentsflow/internal/agents"
	"github.com/agentsflowai/agentsflow/internal/api"
	"github.com/agentsflowai/agentsflow/internal/auth"
	"github.com/agentsflowai/agentsflow/internal/config"
	"github.com/agentsflowai/agentsflow/internal/events"
	"github.com/agentsflowai/agentsflow/internal/history"
	"github.com/agentsflowai/agentsflow/internal/llm"
	"github.com/agentsflowai/agentsflow/internal/memory"
	"github.com/agentsflowai/agentsflow/internal/notify"
	"github.com/agentsflowai/agentsflow/internal/orchestrator"
)

type TestEnv struct {
	Pool         *pgxpool.Pool
	RedisClient  *redis.Client
	EventsClient *events.Client
	Server       *httptest.Server
	AuthSvc      *auth.Service
	Hub          *notify.Hub
	Repo         history.Repository
}

var testEnv *TestEnv

// stubModel answers every completion request with a fixed reply so chat
// flows can run without a real model server.
func stubModel(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"stub reply"},"done":true,"prompt_eval_count":10,"eval_count":5}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "agentsflow_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Start NATS container with JetStream
	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"-js"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting nats container: %v", err)
	}
	t.Cleanup(func() { natsContainer.Terminate(ctx) })

	natsHost, _ := natsContainer.Host(ctx)
	natsPort, _ := natsContainer.MappedPort(ctx, "4222")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/agentsflow_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	migrationsPath := getMigrationsPath()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Connect to NATS
	eventsClient, err := events.NewClient(ctx, config.NATSConfig{
		URL: fmt.Sprintf("nats://%s:%s", natsHost, natsPort.Port()),
	})
	if err != nil {
		t.Fatalf("connecting to nats: %v", err)
	}
	t.Cleanup(eventsClient.Close)

	// Setup services
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-long!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	authHandler := auth.NewHandler(authSvc)

	registry, err := agents.NewRegistry(agents.Catalog(), agents.DefaultAgentID)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	keywordRouter, err := orchestrator.NewRouter(orchestrator.DefaultRules(), registry)
	if err != nil {
		t.Fatalf("building keyword router: %v", err)
	}
	agentHandler := agents.NewHandler(registry)

	store := memory.NewStore(50)
	llmClient := llm.NewOllamaClient(stubModel(t).URL)
	repo := history.NewRepository(pool)
	publisher := events.NewPublisher(eventsClient.JetStream())

	orch := orchestrator.New(registry, keywordRouter, store, llmClient, repo, publisher, orchestrator.Options{
		Model:         "stub-model",
		Timeout:       5 * time.Second,
		ContextWindow: 10,
		FallbackReply: "try again later",
	})
	orchHandler := orchestrator.NewHandler(orch, repo)

	// Notification relay and gateway
	wsCfg := config.WSConfig{
		PingInterval: 5 * time.Second,
		PongWait:     15 * time.Second,
		WriteWait:    5 * time.Second,
		SendBuffer:   16,
	}
	hub := notify.NewHub(wsCfg.SendBuffer)
	relay, err := notify.NewRelay(ctx, events.NewConsumerManager(eventsClient.JetStream()), hub)
	if err != nil {
		t.Fatalf("creating relay: %v", err)
	}
	relayCtx, relayCancel := context.WithCancel(ctx)
	t.Cleanup(relayCancel)
	go relay.Run(relayCtx)
	gateway := notify.NewGateway(hub, authSvc, notify.NewPresence(redisClient), wsCfg)

	router := api.NewRouter(pool, eventsClient, redisClient, api.RouterConfig{}, api.HandlerSet{
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

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	testEnv = &TestEnv{
		Pool:         pool,
		RedisClient:  redisClient,
		EventsClient: eventsClient,
		Server:       server,
		AuthSvc:      authSvc,
		Hub:          hub,
		Repo:         repo,
	}

	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

// TokenFor issues an access token for userID straight from the auth service.
func TokenFor(t *testing.T, env *TestEnv, userID string) string {
	t.Helper()
	pair, err := env.AuthSvc.GenerateTokens(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("issuing tokens: %v", err)
	}
	return pair.AccessToken
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
