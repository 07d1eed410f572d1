package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/agentsflowai/agentsflow/internal/agents"
	"github.com/agentsflowai/agentsflow/internal/api"
	"github.com/agentsflowai/agentsflow/internal/auth"
	"github.com/agentsflowai/agentsflow/internal/history"
)

type ChatRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,min=1,max=255"`
	Message        string `json:"message" validate:"required,min=1,max=8000"`
}

type InvokeRequest struct {
	AgentID        string `json:"agent_id" validate:"required,min=1"`
	Input          string `json:"input" validate:"required,min=1,max=8000"`
	ConversationID string `json:"conversation_id" validate:"omitempty,max=255"`
}

type PipelineRequest struct {
	ConversationID string   `json:"conversation_id" validate:"required,min=1,max=255"`
	Message        string   `json:"message" validate:"required,min=1,max=8000"`
	Steps          []string `json:"steps" validate:"required,min=1,max=10,dive,required"`
}

type Handler struct {
	orch     *Orchestrator
	repo     history.Repository
	validate *validator.Validate
}

func NewHandler(orch *Orchestrator, repo history.Repository) *Handler {
	return &Handler{
		orch:     orch,
		repo:     repo,
		validate: validator.New(),
	}
}

// ChatMessage handles POST /chat/message. Routed chat always answers 200
// with a reply, real or fallback.
func (h *Handler) ChatMessage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	reply := h.orch.Invoke(r.Context(), req.ConversationID, claims.UserID, req.Message)
	api.JSON(w, http.StatusOK, reply)
}

// InvokeAgent handles POST /agents/invoke, bypassing the keyword router.
func (h *Handler) InvokeAgent(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}

	reply, err := h.orch.InvokeAgent(r.Context(), req.ConversationID, claims.UserID, req.AgentID, req.Input)
	if err != nil {
		var notFound *agents.ErrAgentNotFound
		if errors.As(err, &notFound) {
			api.HandleError(w, api.ErrAgentUnknown)
			return
		}
		slog.Error("direct agent invocation", "error", err, "agent_id", req.AgentID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, reply)
}

// RunPipeline handles POST /agents/pipeline.
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req PipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result := h.orch.RunPipeline(r.Context(), req.ConversationID, claims.UserID, req.Message, req.Steps)
	api.JSON(w, http.StatusOK, result)
}

// DeleteConversation handles DELETE /conversations/{conversationID}.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.orch.ClearConversation(r.Context(), conversationID, claims.UserID); err != nil {
		slog.Error("clearing conversation", "error", err, "conversation_id", conversationID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONMessage(w, http.StatusOK, "conversation deleted")
}

// ListExecutionLogs handles GET /conversations/{conversationID}/logs.
func (h *Handler) ListExecutionLogs(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	logs, err := h.repo.ListExecutionLogs(r.Context(), conversationID, 100)
	if err != nil {
		slog.Error("listing execution logs", "error", err, "conversation_id", conversationID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, logs)
}
