package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Chat window bounds
	if c.Chat.ContextWindow < 1 {
		errs = append(errs, fmt.Sprintf("CHAT_CONTEXT_WINDOW must be positive, got %d", c.Chat.ContextWindow))
	}
	if c.Chat.MaxMessages < c.Chat.ContextWindow {
		errs = append(errs, fmt.Sprintf("CHAT_MAX_MESSAGES (%d) must be >= CHAT_CONTEXT_WINDOW (%d)",
			c.Chat.MaxMessages, c.Chat.ContextWindow))
	}

	// LLM call deadline
	if c.LLM.Timeout <= 0 {
		errs = append(errs, "LLM_TIMEOUT must be positive")
	}

	// Heartbeat windows: the pong wait must outlast the ping interval or
	// every healthy connection gets reaped.
	if c.WS.PongWait <= c.WS.PingInterval {
		errs = append(errs, fmt.Sprintf("WS_PONG_WAIT (%s) must exceed WS_PING_INTERVAL (%s)",
			c.WS.PongWait, c.WS.PingInterval))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
