package history

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Execution statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// ExecutionLog records one agent invocation. Rows are written once and
// never mutated.
type ExecutionLog struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id"`
	InputSummary   string    `json:"input_summary"`
	OutputSummary  string    `json:"output_summary"`
	DurationMs     int64     `json:"duration_ms"`
	Status         string    `json:"status"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageRow is the durable copy of a conversation message, independent of
// the in-process window.
type MessageRow struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// summaryLimit caps how much of a message lands in an execution log row.
const summaryLimit = 200

// Summarize truncates s for execution-log storage, backing up to a rune
// boundary so the result stays valid UTF-8.
func Summarize(s string) string {
	if len(s) <= summaryLimit {
		return s
	}
	cut := summaryLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
