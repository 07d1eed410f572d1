package agents

import (
	"net/http"

	"github.com/agentsflowai/agentsflow/internal/api"
)

// Handler serves the read-only agent catalog.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// List handles GET /agents, returning catalog summaries sorted by ID.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.registry.List())
}
