package orchestrator

import (
	"fmt"
	"strings"

	"github.com/agentsflowai/agentsflow/internal/agents"
)

// Rule maps a keyword set to an agent. Rules are evaluated in declaration
// order and the first hit wins, so more specific entries belong earlier.
type Rule struct {
	Keywords []string
	AgentID  string
}

// Router resolves free-text messages to agent IDs by case-insensitive
// substring match. It never fails: unmatched messages fall through to the
// registry's default agent, whose presence the registry enforced at startup.
type Router struct {
	rules     []rule
	defaultID string
}

type rule struct {
	keywords []string // pre-lowered
	agentID  string
}

// NewRouter validates that every rule targets a registered agent and
// returns a router falling back to the registry default.
func NewRouter(rules []Rule, registry *agents.Registry) (*Router, error) {
	compiled := make([]rule, 0, len(rules))
	for i, r := range rules {
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d has no keywords", i)
		}
		if _, err := registry.Resolve(r.AgentID); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		lowered := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, fmt.Errorf("rule %d has an empty keyword", i)
			}
			lowered[j] = kw
		}
		compiled = append(compiled, rule{keywords: lowered, agentID: r.AgentID})
	}

	return &Router{rules: compiled, defaultID: registry.DefaultID()}, nil
}

// Route returns the agent ID for the message. Empty messages and messages
// matching no keyword route to the default agent.
func (r *Router) Route(message string) string {
	msg := strings.ToLower(message)
	if msg == "" {
		return r.defaultID
	}
	for _, rl := range r.rules {
		for _, kw := range rl.keywords {
			if strings.Contains(msg, kw) {
				return rl.agentID
			}
		}
	}
	return r.defaultID
}

// DefaultRules is the fixed routing table for the marketing agent catalog.
func DefaultRules() []Rule {
	return []Rule{
		{Keywords: []string{"seo", "sem", "google ads", "ppc", "campaign", "marketing"}, AgentID: "digital_marketing_agent"},
		{Keywords: []string{"price", "pricing", "cost", "plan", "billing", "invoice"}, AgentID: "pricing_agent"},
		{Keywords: []string{"schedule", "appointment", "meeting", "book", "demo", "calendar"}, AgentID: "scheduling_agent"},
		{Keywords: []string{"lead", "prospect", "qualify", "pipeline"}, AgentID: "lead_qualifier_agent"},
		{Keywords: []string{"blog", "article", "content", "copywriting", "newsletter"}, AgentID: "content_agent"},
		{Keywords: []string{"instagram", "facebook", "linkedin", "tiktok", "social media", "post"}, AgentID: "social_media_agent"},
		{Keywords: []string{"help", "issue", "problem", "error", "broken", "support"}, AgentID: "support_agent"},
		{Keywords: []string{"analytics", "metrics", "report", "conversion", "traffic"}, AgentID: "analytics_agent"},
		{Keywords: []string{"brand", "branding", "logo", "identity", "positioning"}, AgentID: "branding_agent"},
	}
}
