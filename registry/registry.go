package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-protocol/syncmap"
	"go.uber.org/zap"
)

// Dispatcher forwards protocol calls to one upstream provider. Implemented by
// upstream.Connector; the registry owns one per registered provider.
type Dispatcher interface {
	CallTool(ctx context.Context, params *schema.CallToolRequestParams) (*schema.CallToolResult, error)
	ReadResource(ctx context.Context, params *schema.ReadResourceRequestParams) (*schema.ReadResourceResult, error)
	GetPrompt(ctx context.Context, params *schema.GetPromptRequestParams) (*schema.GetPromptResult, error)
}

// View is an immutable aggregate of all connected providers' capabilities,
// published atomically so concurrent readers never observe a torn aggregate.
type View struct {
	capabilities []Capability
	byID         map[string]*Capability
}

// Capabilities returns the aggregate in provider-registration order.
func (v *View) Capabilities() []Capability {
	if v == nil {
		return nil
	}
	return v.capabilities
}

// Lookup returns the capability with the given id, if present.
func (v *View) Lookup(id string) (*Capability, bool) {
	if v == nil {
		return nil, false
	}
	ret, ok := v.byID[id]
	return ret, ok
}

// Len returns the number of aggregated capabilities.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.capabilities)
}

type provider struct {
	id        string
	snapshot  *ProviderSnapshot
	connected bool
}

// Registry aggregates capability snapshots from all upstream connectors into
// one process-wide directory. Writers (connector (re)lists, state changes)
// rebuild and atomically swap the view; readers only ever load the pointer.
type Registry struct {
	mux         sync.Mutex
	order       []string
	providers   map[string]*provider
	dispatchers *syncmap.Map[string, Dispatcher]
	view        atomic.Pointer[View]
	logger      *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := &Registry{
		providers:   make(map[string]*provider),
		dispatchers: syncmap.NewMap[string, Dispatcher](),
		logger:      logger,
	}
	ret.view.Store(&View{byID: map[string]*Capability{}})
	return ret
}

// Register adds a provider and its dispatcher in registration order. The
// provider contributes nothing to the aggregate until its first Publish.
func (r *Registry) Register(providerID string, dispatcher Dispatcher) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if _, ok := r.providers[providerID]; !ok {
		r.order = append(r.order, providerID)
		r.providers[providerID] = &provider{id: providerID}
	}
	r.dispatchers.Put(providerID, dispatcher)
}

// Publish installs a provider's new snapshot and republishes the aggregate.
func (r *Registry) Publish(snapshot *ProviderSnapshot) {
	r.mux.Lock()
	defer r.mux.Unlock()
	entry, ok := r.providers[snapshot.ProviderID]
	if !ok {
		return
	}
	entry.snapshot = snapshot
	entry.connected = true
	r.publish()
}

// MarkErrored excludes a provider's capabilities from the aggregate without
// deleting its snapshot, distinguishing "provider down" from "unregistered".
func (r *Registry) MarkErrored(providerID string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	entry, ok := r.providers[providerID]
	if !ok || !entry.connected {
		return
	}
	entry.connected = false
	r.publish()
}

// Unregister removes a provider and its capabilities for good.
func (r *Registry) Unregister(providerID string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if _, ok := r.providers[providerID]; !ok {
		return
	}
	delete(r.providers, providerID)
	for i, id := range r.order {
		if id == providerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.dispatchers.Delete(providerID)
	r.publish()
}

// publish rebuilds the aggregate view; callers must hold r.mux.
func (r *Registry) publish() {
	view := &View{byID: make(map[string]*Capability)}
	for _, providerID := range r.order {
		entry := r.providers[providerID]
		if entry.snapshot == nil || !entry.connected {
			continue
		}
		for i := range entry.snapshot.Capabilities {
			capability := entry.snapshot.Capabilities[i]
			if prev, ok := view.byID[capability.ID]; ok {
				// Later registration wins; the deterministic id scheme makes
				// cross-provider collisions a registry anomaly worth surfacing.
				r.logger.Warn("capability id conflict",
					zap.String("id", capability.ID),
					zap.String("provider", capability.ProviderID),
					zap.String("shadowed", prev.ProviderID))
				for j := range view.capabilities {
					if view.capabilities[j].ID == capability.ID {
						view.capabilities[j] = capability
						break
					}
				}
				view.byID[capability.ID] = &entry.snapshot.Capabilities[i]
				continue
			}
			view.capabilities = append(view.capabilities, capability)
			view.byID[capability.ID] = &entry.snapshot.Capabilities[i]
		}
	}
	r.view.Store(view)
}

// Snapshot returns the current aggregate view.
func (r *Registry) Snapshot() *View {
	return r.view.Load()
}

// Dispatcher returns the connector owning the given provider id.
func (r *Registry) Dispatcher(providerID string) (Dispatcher, bool) {
	return r.dispatchers.Get(providerID)
}

// ProviderIDs returns the registered provider ids in registration order.
func (r *Registry) ProviderIDs() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	ret := make([]string, len(r.order))
	copy(ret, r.order)
	return ret
}
