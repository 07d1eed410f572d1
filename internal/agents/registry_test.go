package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() []Descriptor {
	return []Descriptor{
		{ID: "general_chat", Name: "General", SystemPrompt: "be helpful", Capabilities: []string{"general"}},
		{ID: "pricing_agent", Name: "Pricing", SystemPrompt: "explain pricing", Capabilities: []string{"pricing"}},
		{ID: "content_agent", Name: "Content", SystemPrompt: "write content", Capabilities: []string{"content", "copywriting"}},
	}
}

func TestNewRegistry_RequiresDefaultAgent(t *testing.T) {
	_, err := NewRegistry(testCatalog(), "missing_agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default agent")
}

func TestNewRegistry_RejectsDuplicateIDs(t *testing.T) {
	cat := testCatalog()
	cat = append(cat, Descriptor{ID: "pricing_agent", SystemPrompt: "dup"})
	_, err := NewRegistry(cat, "general_chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewRegistry_RejectsEmptyPrompt(t *testing.T) {
	cat := testCatalog()
	cat = append(cat, Descriptor{ID: "bad_agent"})
	_, err := NewRegistry(cat, "general_chat")
	require.Error(t, err)
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), "general_chat")
	require.NoError(t, err)

	d, err := reg.Resolve("pricing_agent")
	require.NoError(t, err)
	assert.Equal(t, "pricing_agent", d.ID)
	assert.Equal(t, "explain pricing", d.SystemPrompt)

	_, err = reg.Resolve("nope")
	require.Error(t, err)
	var notFound *ErrAgentNotFound
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nope", notFound.ID)
}

func TestRegistry_ResolveIsIdempotent(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), "general_chat")
	require.NoError(t, err)

	first, err := reg.Resolve("content_agent")
	require.NoError(t, err)
	second, err := reg.Resolve("content_agent")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, *first, *second)
}

func TestRegistry_Default(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), "general_chat")
	require.NoError(t, err)
	assert.Equal(t, "general_chat", reg.Default().ID)
	assert.Equal(t, "general_chat", reg.DefaultID())
}

func TestRegistry_ResolveCapability(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), "general_chat")
	require.NoError(t, err)

	d, err := reg.ResolveCapability("copywriting")
	require.NoError(t, err)
	assert.Equal(t, "content_agent", d.ID)

	_, err = reg.ResolveCapability("astrology")
	assert.Error(t, err)
}

func TestRegistry_ListSortedByID(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), "general_chat")
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "content_agent", list[0].ID)
	assert.Equal(t, "general_chat", list[1].ID)
	assert.Equal(t, "pricing_agent", list[2].ID)
}

func TestCatalog_BuildsWithDefault(t *testing.T) {
	reg, err := NewRegistry(Catalog(), DefaultAgentID)
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentID, reg.DefaultID())
	assert.GreaterOrEqual(t, len(reg.List()), 10)
}
