package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/mcp-protocol/schema"

	"github.com/viant/mcp-bridge/directory"
	"github.com/viant/mcp-bridge/registry"
)

type nopDispatcher struct{}

func (nopDispatcher) CallTool(context.Context, *schema.CallToolRequestParams) (*schema.CallToolResult, error) {
	return nil, nil
}
func (nopDispatcher) ReadResource(context.Context, *schema.ReadResourceRequestParams) (*schema.ReadResourceResult, error) {
	return nil, nil
}
func (nopDispatcher) GetPrompt(context.Context, *schema.GetPromptRequestParams) (*schema.GetPromptResult, error) {
	return nil, nil
}

func aggregateView(t *testing.T) *registry.View {
	t.Helper()
	aRegistry := registry.New(nil)
	aRegistry.Register("p1", nopDispatcher{})
	aRegistry.Register("p2", nopDispatcher{})
	aRegistry.Publish(&registry.ProviderSnapshot{
		ProviderID: "p1",
		Version:    1,
		Capabilities: []registry.Capability{
			registry.NewTool("p1", schema.Tool{Name: "list_files", InputSchema: schema.ToolInputSchema{Type: "object"}}),
			registry.NewTool("p1", schema.Tool{Name: "read_file", InputSchema: schema.ToolInputSchema{Type: "object"}}),
			registry.NewResource("p1", schema.Resource{Name: "readme", Uri: "file:///readme.md"}),
		},
	})
	aRegistry.Publish(&registry.ProviderSnapshot{
		ProviderID: "p2",
		Version:    1,
		Capabilities: []registry.Capability{
			registry.NewTool("p2", schema.Tool{Name: "query", InputSchema: schema.ToolInputSchema{Type: "object"}}),
			registry.NewPrompt("p2", schema.Prompt{Name: "summarize"}),
		},
	})
	return aRegistry.Snapshot()
}

func TestNewFilteredView(t *testing.T) {
	view := aggregateView(t)

	testCases := []struct {
		description string
		agent       *directory.Agent
		tools       []string
		resources   []string
		prompts     []string
	}{
		{
			description: "subset of one provider",
			agent: &directory.Agent{
				ID:             "a1",
				AllowedToolIDs: []string{registry.CapabilityID("p1", registry.KindTool, "list_files")},
			},
			tools: []string{"list_files"},
		},
		{
			description: "capabilities across providers",
			agent: &directory.Agent{
				ID: "a2",
				AllowedToolIDs: []string{
					registry.CapabilityID("p1", registry.KindTool, "read_file"),
					registry.CapabilityID("p2", registry.KindTool, "query"),
				},
				AllowedResourceIDs: []string{registry.CapabilityID("p1", registry.KindResource, "file:///readme.md")},
				AllowedPromptIDs:   []string{registry.CapabilityID("p2", registry.KindPrompt, "summarize")},
			},
			tools:     []string{"read_file", "query"},
			resources: []string{"file:///readme.md"},
			prompts:   []string{"summarize"},
		},
		{
			description: "empty allow-lists yield an empty view",
			agent:       &directory.Agent{ID: "a3"},
		},
		{
			description: "stale ids are dropped silently",
			agent: &directory.Agent{
				ID:             "a4",
				AllowedToolIDs: []string{registry.CapabilityID("p1", registry.KindTool, "removed_tool")},
			},
		},
		{
			description: "allow-list kind must match the capability kind",
			agent: &directory.Agent{
				ID:                 "a5",
				AllowedResourceIDs: []string{registry.CapabilityID("p1", registry.KindTool, "list_files")},
			},
		},
	}

	for _, testCase := range testCases {
		filtered := NewFilteredView(view, testCase.agent)

		var tools []string
		for _, tool := range filtered.Tools() {
			tools = append(tools, tool.Name)
		}
		var resources []string
		for _, resource := range filtered.Resources() {
			resources = append(resources, resource.Uri)
		}
		var prompts []string
		for _, prompt := range filtered.Prompts() {
			prompts = append(prompts, prompt.Name)
		}
		assert.Equal(t, testCase.tools, tools, testCase.description)
		assert.Equal(t, testCase.resources, resources, testCase.description)
		assert.Equal(t, testCase.prompts, prompts, testCase.description)
		assert.Equal(t, len(testCase.tools)+len(testCase.resources)+len(testCase.prompts), filtered.Len(), testCase.description)
	}
}

func TestFilteredView_Lookup(t *testing.T) {
	view := aggregateView(t)
	agent := &directory.Agent{
		ID:             "a1",
		AllowedToolIDs: []string{registry.CapabilityID("p1", registry.KindTool, "list_files")},
	}
	filtered := NewFilteredView(view, agent)

	capability, ok := filtered.Tool("list_files")
	if assert.True(t, ok) {
		assert.Equal(t, "p1", capability.ProviderID)
	}
	_, ok = filtered.Tool("read_file")
	assert.False(t, ok, "tool outside the allow-list must not resolve")
	_, ok = filtered.Resource("file:///readme.md")
	assert.False(t, ok)

	_, ok = filtered.Lookup(capability.ID)
	assert.True(t, ok)
}

func TestFilteredView_StableAgainstRegistryChanges(t *testing.T) {
	aRegistry := registry.New(nil)
	aRegistry.Register("p1", nopDispatcher{})
	aRegistry.Publish(&registry.ProviderSnapshot{
		ProviderID: "p1",
		Version:    1,
		Capabilities: []registry.Capability{
			registry.NewTool("p1", schema.Tool{Name: "list_files", InputSchema: schema.ToolInputSchema{Type: "object"}}),
		},
	})
	agent := &directory.Agent{
		ID:             "a1",
		AllowedToolIDs: []string{registry.CapabilityID("p1", registry.KindTool, "list_files")},
	}
	filtered := NewFilteredView(aRegistry.Snapshot(), agent)

	// provider drops the tool after the session started
	aRegistry.Publish(&registry.ProviderSnapshot{ProviderID: "p1", Version: 2})

	_, ok := filtered.Tool("list_files")
	assert.True(t, ok, "a session view is immutable for the session's lifetime")
}
