package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists conversations, messages, and execution logs.
type Repository interface {
	EnsureConversation(ctx context.Context, conversationID string) error
	InsertMessage(ctx context.Context, row *MessageRow) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*MessageRow, error)
	DeleteConversation(ctx context.Context, conversationID string) error

	InsertExecutionLog(ctx context.Context, row *ExecutionLog) error
	ListExecutionLogs(ctx context.Context, conversationID string, limit int) ([]*ExecutionLog, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) EnsureConversation(ctx context.Context, conversationID string) error {
	query := `
		INSERT INTO conversations (id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, conversationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensuring conversation: %w", err)
	}
	return nil
}

func (r *postgresRepository) InsertMessage(ctx context.Context, row *MessageRow) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	query := `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		row.ID, row.ConversationID, row.Role, row.Content, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*MessageRow, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []*MessageRow
	for rows.Next() {
		row := &MessageRow{}
		if err := rows.Scan(&row.ID, &row.ConversationID, &row.Role, &row.Content, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *postgresRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	// Messages cascade via FK; execution logs are kept for audit.
	if _, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

func (r *postgresRepository) InsertExecutionLog(ctx context.Context, row *ExecutionLog) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	query := `
		INSERT INTO execution_logs (id, conversation_id, agent_id, input_summary, output_summary, duration_ms, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		row.ID, row.ConversationID, row.AgentID,
		row.InputSummary, row.OutputSummary, row.DurationMs,
		row.Status, row.ErrorMessage, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting execution log: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListExecutionLogs(ctx context.Context, conversationID string, limit int) ([]*ExecutionLog, error) {
	query := `
		SELECT id, conversation_id, agent_id, input_summary, output_summary, duration_ms, status, error_message, created_at
		FROM execution_logs
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing execution logs: %w", err)
	}
	defer rows.Close()

	var out []*ExecutionLog
	for rows.Next() {
		row := &ExecutionLog{}
		err := rows.Scan(
			&row.ID, &row.ConversationID, &row.AgentID,
			&row.InputSummary, &row.OutputSummary, &row.DurationMs,
			&row.Status, &row.ErrorMessage, &row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning execution log row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
