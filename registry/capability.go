package registry

import (
	"github.com/google/uuid"
	"github.com/viant/mcp-protocol/schema"
)

// Kind discriminates the three capability families of the protocol.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// Capability is one tool, resource or prompt exposed by an upstream provider.
// Exactly one of Tool/Resource/Prompt is set, matching Kind; the payload is
// passed through to clients unmodified.
type Capability struct {
	ID         string
	Kind       Kind
	Name       string
	ProviderID string

	Tool     *schema.Tool
	Resource *schema.Resource
	Prompt   *schema.Prompt
}

// CapabilityID derives the stable capability id from the owning provider id,
// the kind and the provider-native name (tool name, resource URI, prompt name).
// The same triple always yields the same id across re-lists and restarts.
func CapabilityID(providerID string, kind Kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mcp-bridge://"+providerID+"/"+string(kind)+"/"+name)).String()
}

// NewTool builds a tool capability owned by the given provider.
func NewTool(providerID string, tool schema.Tool) Capability {
	return Capability{
		ID:         CapabilityID(providerID, KindTool, tool.Name),
		Kind:       KindTool,
		Name:       tool.Name,
		ProviderID: providerID,
		Tool:       &tool,
	}
}

// NewResource builds a resource capability; the native name is the resource URI.
func NewResource(providerID string, resource schema.Resource) Capability {
	return Capability{
		ID:         CapabilityID(providerID, KindResource, resource.Uri),
		Kind:       KindResource,
		Name:       resource.Uri,
		ProviderID: providerID,
		Resource:   &resource,
	}
}

// NewPrompt builds a prompt capability owned by the given provider.
func NewPrompt(providerID string, prompt schema.Prompt) Capability {
	return Capability{
		ID:         CapabilityID(providerID, KindPrompt, prompt.Name),
		Kind:       KindPrompt,
		Name:       prompt.Name,
		ProviderID: providerID,
		Prompt:     &prompt,
	}
}

// ProviderSnapshot is one provider's capability listing, rebuilt wholesale on
// each successful re-list. Version strictly increases per provider.
type ProviderSnapshot struct {
	ProviderID   string
	Version      int64
	Capabilities []Capability
}
