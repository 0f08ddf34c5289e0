// Package file implements a config-file backed directory store. It is meant
// for development and bootstrap setups where providers and agents are declared
// in a single YAML or JSON document instead of a database.
package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/mcp-bridge/directory"
)

// Config is the on-disk document. Providers can be declared either as an
// explicit list or through the widely used "mcpServers" map, where the map key
// doubles as the provider id.
type Config struct {
	MCPServers map[string]*ServerEntry   `yaml:"mcpServers,omitempty" json:"mcpServers,omitempty"`
	Providers  []*directory.ProviderSpec `yaml:"providers,omitempty" json:"providers,omitempty"`
	Agents     []*directory.Agent        `yaml:"agents,omitempty" json:"agents,omitempty"`
}

// ServerEntry is one value of the mcpServers map.
type ServerEntry struct {
	Type    string            `yaml:"type,omitempty" json:"type,omitempty"`
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
}

// Store serves directory reads from the parsed config and keeps usage counters
// in memory only.
type Store struct {
	providers []*directory.ProviderSpec
	agents    map[string]*directory.Agent

	mux      sync.Mutex
	connects map[string]int
	invokes  map[string]int
}

// New downloads and parses the config document at URL. The URL accepts any
// scheme afs understands (file path, file://, s3://, gs://, mem://).
func New(ctx context.Context, URL string) (*Store, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory config %v: %w", URL, err)
	}
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse directory config %v: %w", URL, err)
	}
	return NewWithConfig(config)
}

// NewWithConfig builds a store from an already parsed config.
func NewWithConfig(config *Config) (*Store, error) {
	ret := &Store{
		agents:   map[string]*directory.Agent{},
		connects: map[string]int{},
		invokes:  map[string]int{},
	}
	for _, spec := range config.Providers {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		ret.providers = append(ret.providers, spec)
	}
	// mcpServers entries come from an unordered map, keep a stable order
	names := make([]string, 0, len(config.MCPServers))
	for name := range config.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := config.MCPServers[name].spec(name)
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		ret.providers = append(ret.providers, spec)
	}
	for _, agent := range config.Agents {
		if agent.ID == "" {
			agent.ID = agent.ClientID
		}
		if agent.ClientID == "" {
			return nil, fmt.Errorf("agent %v had no clientId", agent.ID)
		}
		ret.agents[agent.ClientID] = agent
	}
	return ret, nil
}

func (e *ServerEntry) spec(name string) *directory.ProviderSpec {
	aType := e.Type
	if aType == "" {
		if e.URL != "" {
			aType = directory.ProviderTypeSSE
		} else {
			aType = directory.ProviderTypeStdio
		}
	}
	return &directory.ProviderSpec{
		ID:      name,
		Name:    name,
		Type:    aType,
		Command: e.Command,
		Args:    e.Args,
		Env:     e.Env,
		URL:     e.URL,
	}
}

// ListProviders returns the declared providers in config order.
func (s *Store) ListProviders(_ context.Context) ([]*directory.ProviderSpec, error) {
	return s.providers, nil
}

// LookupAgent returns the agent declared for clientID or directory.ErrNotFound.
func (s *Store) LookupAgent(_ context.Context, clientID string) (*directory.Agent, error) {
	agent, ok := s.agents[clientID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return agent, nil
}

// RecordConnect increments the in-memory connect counter.
func (s *Store) RecordConnect(_ context.Context, agentID, providerID string, _ time.Time) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.connects[agentID+"/"+providerID]++
	return nil
}

// RecordDisconnect decrements nothing; the file store only counts connects.
func (s *Store) RecordDisconnect(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

// RecordInvocation increments the in-memory invocation counter.
func (s *Store) RecordInvocation(_ context.Context, invocation *directory.Invocation) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.invokes[invocation.AgentID+"/"+invocation.CapabilityID]++
	return nil
}

// Connects returns the recorded connect count for an agent/provider pair.
func (s *Store) Connects(agentID, providerID string) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.connects[agentID+"/"+providerID]
}

// Invocations returns the recorded invocation count for an agent/capability pair.
func (s *Store) Invocations(agentID, capabilityID string) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.invokes[agentID+"/"+capabilityID]
}

// Close is a no-op for the file store.
func (s *Store) Close() error { return nil }
