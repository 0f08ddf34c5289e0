package session

import (
	"github.com/viant/mcp-protocol/schema"

	"github.com/viant/mcp-bridge/directory"
	"github.com/viant/mcp-bridge/registry"
)

type viewKey struct {
	kind registry.Kind
	name string
}

// FilteredView is the intersection of the registry aggregate with one agent's
// allow-lists, restricted by kind. Allow-list ids that no longer exist in the
// registry are silently dropped. The view is immutable after construction.
type FilteredView struct {
	tools     []schema.Tool
	resources []schema.Resource
	prompts   []schema.Prompt
	ordered   []*registry.Capability
	byKey     map[viewKey]*registry.Capability
	byID      map[string]*registry.Capability
}

// NewFilteredView computes the agent's capability view from a registry
// snapshot. The snapshot reference is not retained.
func NewFilteredView(view *registry.View, agent *directory.Agent) *FilteredView {
	ret := &FilteredView{
		byKey: make(map[viewKey]*registry.Capability),
		byID:  make(map[string]*registry.Capability),
	}
	allowed := map[registry.Kind]map[string]bool{
		registry.KindTool:     allowSet(agent.AllowedToolIDs),
		registry.KindResource: allowSet(agent.AllowedResourceIDs),
		registry.KindPrompt:   allowSet(agent.AllowedPromptIDs),
	}
	capabilities := view.Capabilities()
	for i := range capabilities {
		capability := &capabilities[i]
		if !allowed[capability.Kind][capability.ID] {
			continue
		}
		switch capability.Kind {
		case registry.KindTool:
			ret.tools = append(ret.tools, *capability.Tool)
		case registry.KindResource:
			ret.resources = append(ret.resources, *capability.Resource)
		case registry.KindPrompt:
			ret.prompts = append(ret.prompts, *capability.Prompt)
		}
		ret.ordered = append(ret.ordered, capability)
		ret.byKey[viewKey{kind: capability.Kind, name: capability.Name}] = capability
		ret.byID[capability.ID] = capability
	}
	return ret
}

func allowSet(ids []string) map[string]bool {
	ret := make(map[string]bool, len(ids))
	for _, id := range ids {
		ret[id] = true
	}
	return ret
}

// Tools returns the tools visible to the session.
func (v *FilteredView) Tools() []schema.Tool {
	return v.tools
}

// Resources returns the resources visible to the session.
func (v *FilteredView) Resources() []schema.Resource {
	return v.resources
}

// Prompts returns the prompts visible to the session.
func (v *FilteredView) Prompts() []schema.Prompt {
	return v.prompts
}

// Tool looks a tool up by its native name.
func (v *FilteredView) Tool(name string) (*registry.Capability, bool) {
	ret, ok := v.byKey[viewKey{kind: registry.KindTool, name: name}]
	return ret, ok
}

// Resource looks a resource up by its URI.
func (v *FilteredView) Resource(uri string) (*registry.Capability, bool) {
	ret, ok := v.byKey[viewKey{kind: registry.KindResource, name: uri}]
	return ret, ok
}

// Prompt looks a prompt up by its native name.
func (v *FilteredView) Prompt(name string) (*registry.Capability, bool) {
	ret, ok := v.byKey[viewKey{kind: registry.KindPrompt, name: name}]
	return ret, ok
}

// All returns every visible capability in aggregate order.
func (v *FilteredView) All() []*registry.Capability {
	return v.ordered
}

// Lookup returns the capability with the given id, if visible.
func (v *FilteredView) Lookup(id string) (*registry.Capability, bool) {
	ret, ok := v.byID[id]
	return ret, ok
}

// Len returns the number of visible capabilities.
func (v *FilteredView) Len() int {
	return len(v.byID)
}
