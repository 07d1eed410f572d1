package llm

import (
	"context"
	"errors"
)

// ErrTimeout marks a completion call that exceeded its deadline. The
// orchestrator distinguishes it from other transport failures when writing
// execution logs.
var ErrTimeout = errors.New("llm: request timed out")

// ChatMessage is one turn of model input.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a prompt-completion call.
type Request struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
}

// Completion is a successful model reply.
type Completion struct {
	Text       string
	TokensUsed int
}

// Client is the LLM runtime boundary. Implementations must respect ctx
// cancellation and deadlines.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
