package agents

import (
	"fmt"
	"sort"
)

// Descriptor describes one agent: what it claims to handle and how its
// prompts are seeded. Descriptors are immutable after registration.
type Descriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	SystemPrompt string   `json:"-"`
	Model        string   `json:"model,omitempty"`
	Temperature  float64  `json:"-"`
}

// Summary is the public projection of a Descriptor returned by the API.
type Summary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// ErrAgentNotFound is returned by Resolve for unregistered IDs. The router
// guarantees it never surfaces from routed chat; direct invocation maps it
// to a 404.
type ErrAgentNotFound struct {
	ID string
}

func (e *ErrAgentNotFound) Error() string {
	return fmt.Sprintf("agent %q not registered", e.ID)
}

// Registry is the fixed agent table, built once at startup and read-only
// afterwards, so lookups need no locking.
type Registry struct {
	byID      map[string]*Descriptor
	defaultID string
}

// NewRegistry builds a registry from the given descriptors. It fails if IDs
// collide or the default agent is missing; a misconfigured default must
// stop the process before it serves traffic.
func NewRegistry(descriptors []Descriptor, defaultID string) (*Registry, error) {
	byID := make(map[string]*Descriptor, len(descriptors))
	for i := range descriptors {
		d := descriptors[i]
		if d.ID == "" {
			return nil, fmt.Errorf("agent descriptor %d has empty id", i)
		}
		if _, exists := byID[d.ID]; exists {
			return nil, fmt.Errorf("duplicate agent id %q", d.ID)
		}
		if d.SystemPrompt == "" {
			return nil, fmt.Errorf("agent %q has empty system prompt", d.ID)
		}
		byID[d.ID] = &d
	}

	if _, ok := byID[defaultID]; !ok {
		return nil, fmt.Errorf("default agent %q not in catalog", defaultID)
	}

	return &Registry{byID: byID, defaultID: defaultID}, nil
}

// Resolve returns the descriptor for id, or *ErrAgentNotFound.
func (r *Registry) Resolve(id string) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, &ErrAgentNotFound{ID: id}
	}
	return d, nil
}

// Default returns the fallback agent's descriptor.
func (r *Registry) Default() *Descriptor {
	return r.byID[r.defaultID]
}

// DefaultID returns the fallback agent's id.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// ResolveCapability returns the first agent (by ID order) claiming the given
// capability tag, used by pipeline steps.
func (r *Registry) ResolveCapability(tag string) (*Descriptor, error) {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, c := range r.byID[id].Capabilities {
			if c == tag {
				return r.byID[id], nil
			}
		}
	}
	return nil, &ErrAgentNotFound{ID: tag}
}

// List returns summaries of all registered agents, sorted by ID.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, Summary{
			ID:           d.ID,
			Name:         d.Name,
			Description:  d.Description,
			Capabilities: d.Capabilities,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
