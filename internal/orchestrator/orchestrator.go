package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agentsflowai/agentsflow/internal/agents"
	"github.com/agentsflowai/agentsflow/internal/events"
	"github.com/agentsflowai/agentsflow/internal/history"
	"github.com/agentsflowai/agentsflow/internal/llm"
	"github.com/agentsflowai/agentsflow/internal/memory"
	"github.com/agentsflowai/agentsflow/internal/metrics"
)

// Options carries the orchestrator's tunables from config.
type Options struct {
	Model         string
	Temperature   float64
	Timeout       time.Duration
	ContextWindow int
	FallbackReply string
}

// Reply is the outcome of one routed chat turn. Status mirrors the
// execution log entry written for the turn.
type Reply struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	Reply          string `json:"reply"`
	Status         string `json:"status"`
}

// StepResult is the outcome of one pipeline step.
type StepResult struct {
	Capability string `json:"capability"`
	AgentID    string `json:"agent_id"`
	Output     string `json:"output,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// PipelineResult collects per-step outcomes. Completed steps are returned
// even when a later step fails; their side effects are already persisted.
type PipelineResult struct {
	ConversationID string       `json:"conversation_id"`
	Steps          []StepResult `json:"steps"`
	FailedStep     string       `json:"failed_step,omitempty"`
}

// Orchestrator routes chat messages to agents and manages the
// invoke/log/reply lifecycle. Upstream failures never escape Invoke: the
// caller always gets a reply, real or fallback.
type Orchestrator struct {
	registry  *agents.Registry
	router    *Router
	store     *memory.Store
	llmClient llm.Client
	repo      history.Repository
	publisher *events.Publisher
	opts      Options

	// one lock per active conversation so turns do not interleave;
	// distinct conversations proceed in parallel
	turnLocks sync.Map
}

// New creates an Orchestrator. publisher and repo may be nil in tests that
// exercise routing and memory only.
func New(
	registry *agents.Registry,
	router *Router,
	store *memory.Store,
	llmClient llm.Client,
	repo history.Repository,
	publisher *events.Publisher,
	opts Options,
) *Orchestrator {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = "I'm having trouble responding right now. Please try again in a moment."
	}
	return &Orchestrator{
		registry:  registry,
		router:    router,
		store:     store,
		llmClient: llmClient,
		repo:      repo,
		publisher: publisher,
		opts:      opts,
	}
}

func (o *Orchestrator) lockConversation(conversationID string) func() {
	v, _ := o.turnLocks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Invoke routes the message to an agent and runs one chat turn. It never
// returns an error: any upstream failure yields the fallback reply with a
// non-success status.
func (o *Orchestrator) Invoke(ctx context.Context, conversationID, userID, message string) *Reply {
	agentID := o.router.Route(message)
	desc, err := o.registry.Resolve(agentID)
	if err != nil {
		// Unreachable when the router was built against this registry;
		// fall back to the default agent rather than failing the turn.
		slog.Error("routed to unregistered agent", "agent_id", agentID, "error", err)
		desc = o.registry.Default()
	}
	return o.runTurn(ctx, conversationID, userID, desc, message)
}

// InvokeAgent runs one chat turn against an explicitly chosen agent,
// bypassing the router. Unknown agents return *agents.ErrAgentNotFound.
func (o *Orchestrator) InvokeAgent(ctx context.Context, conversationID, userID, agentID, input string) (*Reply, error) {
	desc, err := o.registry.Resolve(agentID)
	if err != nil {
		return nil, err
	}
	return o.runTurn(ctx, conversationID, userID, desc, input), nil
}

func (o *Orchestrator) runTurn(ctx context.Context, conversationID, userID string, desc *agents.Descriptor, message string) *Reply {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	now := time.Now().UTC()
	o.persistConversation(ctx, conversationID)

	userMsg := memory.Message{Role: memory.RoleUser, Content: message, Timestamp: now}
	o.store.Append(conversationID, userMsg)
	o.persistMessage(ctx, conversationID, userMsg)

	text, status, errMsg := o.callModel(ctx, conversationID, desc, nil)
	o.writeExecutionLog(ctx, conversationID, desc.ID, message, text, status, errMsg, now)
	metrics.AgentInvocationsTotal.WithLabelValues(desc.ID, status).Inc()

	if status != history.StatusSuccess {
		return &Reply{
			ConversationID: conversationID,
			AgentID:        desc.ID,
			Reply:          o.opts.FallbackReply,
			Status:         status,
		}
	}

	assistantMsg := memory.Message{Role: memory.RoleAssistant, Content: text, Timestamp: time.Now().UTC()}
	o.store.Append(conversationID, assistantMsg)
	o.persistMessage(ctx, conversationID, assistantMsg)
	o.publishMessageCreated(ctx, conversationID, userID, desc.ID)

	return &Reply{
		ConversationID: conversationID,
		AgentID:        desc.ID,
		Reply:          text,
		Status:         history.StatusSuccess,
	}
}

// RunPipeline invokes one agent per capability tag in order, feeding each
// step's output forward as context for the next. A failed step halts the
// pipeline; prior steps' results and side effects stand.
func (o *Orchestrator) RunPipeline(ctx context.Context, conversationID, userID, message string, steps []string) *PipelineResult {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	result := &PipelineResult{ConversationID: conversationID}

	now := time.Now().UTC()
	o.persistConversation(ctx, conversationID)

	userMsg := memory.Message{Role: memory.RoleUser, Content: message, Timestamp: now}
	o.store.Append(conversationID, userMsg)
	o.persistMessage(ctx, conversationID, userMsg)

	var carried []llm.ChatMessage
	for _, capability := range steps {
		desc, err := o.registry.ResolveCapability(capability)
		if err != nil {
			result.Steps = append(result.Steps, StepResult{
				Capability: capability,
				Status:     history.StatusError,
				Error:      err.Error(),
			})
			result.FailedStep = capability
			return result
		}

		text, status, errMsg := o.callModel(ctx, conversationID, desc, carried)
		o.writeExecutionLog(ctx, conversationID, desc.ID, message, text, status, errMsg, time.Now().UTC())
		metrics.AgentInvocationsTotal.WithLabelValues(desc.ID, status).Inc()

		step := StepResult{Capability: capability, AgentID: desc.ID, Status: status}
		if status != history.StatusSuccess {
			step.Error = errMsg
			result.Steps = append(result.Steps, step)
			result.FailedStep = capability
			return result
		}
		step.Output = text
		result.Steps = append(result.Steps, step)

		carried = append(carried, llm.ChatMessage{
			Role:    memory.RoleSystem,
			Content: "Previous step (" + capability + ") produced: " + text,
		})
	}

	if n := len(result.Steps); n > 0 {
		final := result.Steps[n-1].Output
		assistantMsg := memory.Message{Role: memory.RoleAssistant, Content: final, Timestamp: time.Now().UTC()}
		o.store.Append(conversationID, assistantMsg)
		o.persistMessage(ctx, conversationID, assistantMsg)
		o.publishMessageCreated(ctx, conversationID, userID, result.Steps[n-1].AgentID)
	}
	return result
}

// ClearConversation drops the in-process window, deletes durable history,
// and announces the deletion.
func (o *Orchestrator) ClearConversation(ctx context.Context, conversationID, userID string) error {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	o.store.Clear(conversationID)

	if o.repo != nil {
		if err := o.repo.DeleteConversation(ctx, conversationID); err != nil {
			return err
		}
	}

	// drop the lock entry only once the durable delete is done, so a
	// concurrent turn cannot mint a fresh lock and interleave with it
	o.turnLocks.Delete(conversationID)

	if o.publisher != nil {
		err := o.publisher.PublishToUser(ctx, userID, events.EventConversationDeleted, map[string]string{
			"conversation_id": conversationID,
		})
		if err != nil {
			slog.Error("publishing conversation_deleted", "error", err, "conversation_id", conversationID)
		}
	}
	return nil
}

// callModel builds the prompt from the descriptor and the trailing window,
// then calls the LLM under the configured deadline. It returns the reply
// text with an execution status; it never panics or propagates.
func (o *Orchestrator) callModel(ctx context.Context, conversationID string, desc *agents.Descriptor, extra []llm.ChatMessage) (string, string, string) {
	msgs := make([]llm.ChatMessage, 0, o.opts.ContextWindow+len(extra)+1)
	msgs = append(msgs, llm.ChatMessage{Role: memory.RoleSystem, Content: desc.SystemPrompt})
	msgs = append(msgs, extra...)
	for _, m := range o.store.Window(conversationID, o.opts.ContextWindow) {
		msgs = append(msgs, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	model := desc.Model
	if model == "" {
		model = o.opts.Model
	}
	temperature := desc.Temperature
	if temperature == 0 {
		temperature = o.opts.Temperature
	}

	callCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	comp, err := o.llmClient.Complete(callCtx, llm.Request{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
	})
	if err != nil {
		status := history.StatusError
		if errors.Is(err, llm.ErrTimeout) {
			status = history.StatusTimeout
		}
		slog.Warn("llm call failed",
			"conversation_id", conversationID,
			"agent_id", desc.ID,
			"status", status,
			"error", err,
		)
		return "", status, err.Error()
	}
	return comp.Text, history.StatusSuccess, ""
}

func (o *Orchestrator) writeExecutionLog(ctx context.Context, conversationID, agentID, input, output, status, errMsg string, startedAt time.Time) {
	if o.repo == nil {
		return
	}
	row := &history.ExecutionLog{
		ConversationID: conversationID,
		AgentID:        agentID,
		InputSummary:   history.Summarize(input),
		OutputSummary:  history.Summarize(output),
		DurationMs:     time.Since(startedAt).Milliseconds(),
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
	if errMsg != "" {
		row.ErrorMessage = &errMsg
	}
	if err := o.repo.InsertExecutionLog(ctx, row); err != nil {
		slog.Error("writing execution log", "error", err, "conversation_id", conversationID, "agent_id", agentID)
	}
}

func (o *Orchestrator) persistConversation(ctx context.Context, conversationID string) {
	if o.repo == nil {
		return
	}
	if err := o.repo.EnsureConversation(ctx, conversationID); err != nil {
		slog.Error("ensuring conversation", "error", err, "conversation_id", conversationID)
	}
}

func (o *Orchestrator) persistMessage(ctx context.Context, conversationID string, msg memory.Message) {
	if o.repo == nil {
		return
	}
	row := &history.MessageRow{
		ConversationID: conversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.Timestamp,
	}
	if err := o.repo.InsertMessage(ctx, row); err != nil {
		slog.Error("persisting message", "error", err, "conversation_id", conversationID, "role", msg.Role)
	}
}

func (o *Orchestrator) publishMessageCreated(ctx context.Context, conversationID, userID, agentID string) {
	if o.publisher == nil || userID == "" {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"conversation_id": conversationID,
		"agent_id":        agentID,
	})
	err := o.publisher.Publish(ctx, events.Notification{
		EventType:      events.EventMessageCreated,
		RecipientScope: userID,
		Payload:        payload,
	})
	if err != nil {
		slog.Error("publishing message_created", "error", err, "conversation_id", conversationID)
	}
}
