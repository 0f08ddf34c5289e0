package directory

import (
	"strings"
	"time"
)

// Provider transport types as stored in the provider directory.
const (
	ProviderTypeStdio      = "stdio"
	ProviderTypeSSE        = "sse"
	ProviderTypeStreamable = "streamable"
)

// ProviderSpec describes how to reach one registered upstream MCP server.
type ProviderSpec struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Type        string            `yaml:"type" json:"type"`
	Command     string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL         string            `yaml:"url,omitempty" json:"url,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
}

// Validate checks that the spec carries enough information to open a connection.
func (s *ProviderSpec) Validate() error {
	if s.ID == "" {
		return ErrInvalidSpec("provider id was empty")
	}
	switch s.Type {
	case ProviderTypeStdio:
		if strings.TrimSpace(s.Command) == "" {
			return ErrInvalidSpec("command was empty for stdio provider " + s.ID)
		}
	case ProviderTypeSSE, ProviderTypeStreamable:
		if strings.TrimSpace(s.URL) == "" {
			return ErrInvalidSpec("url was empty for " + s.Type + " provider " + s.ID)
		}
	default:
		return ErrInvalidSpec("unsupported provider type: " + s.Type)
	}
	return nil
}

// Agent is a point-in-time copy of one agent identity row: client credentials
// plus three allow-lists of capability ids. The bridge only ever reads it.
type Agent struct {
	ID                 string   `yaml:"id" json:"id"`
	ClientID           string   `yaml:"clientId" json:"clientId"`
	SecretHash         string   `yaml:"secretHash" json:"secretHash"`
	Name               string   `yaml:"name,omitempty" json:"name,omitempty"`
	AllowedToolIDs     []string `yaml:"allowedToolIds" json:"allowedToolIds"`
	AllowedResourceIDs []string `yaml:"allowedResourceIds" json:"allowedResourceIds"`
	AllowedPromptIDs   []string `yaml:"allowedPromptIds" json:"allowedPromptIds"`
}

// AllowedIDs returns the allow-list for the supplied capability kind.
func (a *Agent) AllowedIDs(kind string) []string {
	switch kind {
	case KindTool:
		return a.AllowedToolIDs
	case KindResource:
		return a.AllowedResourceIDs
	case KindPrompt:
		return a.AllowedPromptIDs
	}
	return nil
}

// Capability kinds as used in the usage tables.
const (
	KindTool     = "tool"
	KindResource = "resource"
	KindPrompt   = "prompt"
)

// Invocation is one completed (or failed) dispatch attributed to an agent.
type Invocation struct {
	AgentID      string
	ProviderID   string
	CapabilityID string
	Kind         string
	Failed       bool
	At           time.Time
}

// ErrInvalidSpec reports a provider directory row that cannot be connected.
type ErrInvalidSpec string

func (e ErrInvalidSpec) Error() string { return string(e) }
