package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	LLM       LLMConfig
	Chat      ChatConfig
	WS        WSConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// LLMConfig configures the Ollama runtime the orchestrator calls.
type LLMConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// ChatConfig bounds the per-conversation in-process window.
type ChatConfig struct {
	// ContextWindow is how many trailing messages are sent to the model.
	ContextWindow int
	// MaxMessages caps how many messages a conversation retains in memory.
	MaxMessages int
	// FallbackReply is returned verbatim when the model call fails.
	FallbackReply string
}

type WSConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Enabled   bool
	MaxReqs   int
	WindowSec int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		LLM: LLMConfig{
			BaseURL:     k.String("llm.base.url"),
			Model:       k.String("llm.model"),
			Temperature: k.Float64("llm.temperature"),
		},
		Chat: ChatConfig{
			ContextWindow: k.Int("chat.context.window"),
			MaxMessages:   k.Int("chat.max.messages"),
			FallbackReply: k.String("chat.fallback.reply"),
		},
		WS: WSConfig{
			SendBuffer: k.Int("ws.send.buffer"),
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   k.Bool("ratelimit.enabled"),
			MaxReqs:   k.Int("ratelimit.max.reqs"),
			WindowSec: k.Int("ratelimit.window.sec"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "agentsflow"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "agentsflow"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.Chat.ContextWindow == 0 {
		cfg.Chat.ContextWindow = 10
	}
	if cfg.Chat.MaxMessages == 0 {
		cfg.Chat.MaxMessages = 50
	}
	if cfg.Chat.FallbackReply == "" {
		cfg.Chat.FallbackReply = "I'm having trouble responding right now. Please try again in a moment."
	}
	if cfg.WS.SendBuffer == 0 {
		cfg.WS.SendBuffer = 64
	}
	if cfg.RateLimit.MaxReqs == 0 {
		cfg.RateLimit.MaxReqs = 60
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.JWT.AccessExpiry, err = parseDuration(k, "jwt.access.expiry", "15m")
	if err != nil {
		return nil, err
	}
	cfg.JWT.RefreshExpiry, err = parseDuration(k, "jwt.refresh.expiry", "168h")
	if err != nil {
		return nil, err
	}
	cfg.LLM.Timeout, err = parseDuration(k, "llm.timeout", "60s")
	if err != nil {
		return nil, err
	}
	cfg.WS.PingInterval, err = parseDuration(k, "ws.ping.interval", "30s")
	if err != nil {
		return nil, err
	}
	cfg.WS.PongWait, err = parseDuration(k, "ws.pong.wait", "75s")
	if err != nil {
		return nil, err
	}
	cfg.WS.WriteWait, err = parseDuration(k, "ws.write.wait", "10s")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
