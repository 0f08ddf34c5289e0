// Package usage records connection lifecycle and per-capability invocation
// counters attributed to (agent, provider) and (agent, capability) pairs.
// In-memory counters are updated with atomic increments on the request path;
// a background flusher mirrors every event into the usage store as idempotent
// upsert increments.
package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/viant/mcp-bridge/directory"
	"github.com/viant/mcp-bridge/registry"
)

// ProviderCounters accumulates per (agent, provider) activity.
type ProviderCounters struct {
	Connects      atomic.Int64
	Disconnects   atomic.Int64
	Connected     atomic.Int64
	ToolCalls     atomic.Int64
	ResourceReads atomic.Int64
	PromptGets    atomic.Int64
	Failures      atomic.Int64
	lastActivity  atomic.Int64
}

// LastActivity returns the time of the most recent event, zero when none.
func (c *ProviderCounters) LastActivity() time.Time {
	nanos := c.lastActivity.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (c *ProviderCounters) touch(at time.Time) {
	c.lastActivity.Store(at.UnixNano())
}

// CapabilityCounters accumulates per (agent, capability) activity.
type CapabilityCounters struct {
	Calls         atomic.Int64
	Failures      atomic.Int64
	firstActivity atomic.Int64
	lastActivity  atomic.Int64
}

// FirstActivity returns the time of the first recorded event.
func (c *CapabilityCounters) FirstActivity() time.Time {
	nanos := c.firstActivity.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// LastActivity returns the time of the most recent event.
func (c *CapabilityCounters) LastActivity() time.Time {
	nanos := c.lastActivity.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (c *CapabilityCounters) touch(at time.Time) {
	nanos := at.UnixNano()
	c.firstActivity.CompareAndSwap(0, nanos)
	c.lastActivity.Store(nanos)
}

type event struct {
	connect    bool
	disconnect bool
	invocation *directory.Invocation
	agentID    string
	providerID string
	at         time.Time
}

// Tracker is the process-wide usage accountant. Safe for concurrent use from
// all sessions; counter updates are atomic and exactly once per event.
type Tracker struct {
	mux          sync.Mutex
	providers    map[string]*ProviderCounters
	capabilities map[string]*CapabilityCounters

	store  directory.UsageStore
	events chan event
	done   chan struct{}
	logger *zap.Logger
}

// NewTracker creates a tracker; store may be nil for in-memory-only tracking.
func NewTracker(store directory.UsageStore, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := &Tracker{
		providers:    make(map[string]*ProviderCounters),
		capabilities: make(map[string]*CapabilityCounters),
		store:        store,
		logger:       logger,
	}
	if store != nil {
		ret.events = make(chan event, 1024)
		ret.done = make(chan struct{})
		go ret.flush()
	}
	return ret
}

// Close drains pending events into the store and stops the flusher.
func (t *Tracker) Close() {
	if t.events == nil {
		return
	}
	close(t.events)
	<-t.done
}

func (t *Tracker) flush() {
	defer close(t.done)
	ctx := context.Background()
	for ev := range t.events {
		var err error
		switch {
		case ev.connect:
			err = t.store.RecordConnect(ctx, ev.agentID, ev.providerID, ev.at)
		case ev.disconnect:
			err = t.store.RecordDisconnect(ctx, ev.agentID, ev.providerID, ev.at)
		case ev.invocation != nil:
			err = t.store.RecordInvocation(ctx, ev.invocation)
		}
		if err != nil {
			t.logger.Warn("failed to persist usage event", zap.Error(err))
		}
	}
}

func (t *Tracker) emit(ev event) {
	if t.events == nil {
		return
	}
	t.events <- ev
}

func pairKey(agentID, subjectID string) string {
	return agentID + "\x00" + subjectID
}

func (t *Tracker) providerCounters(agentID, providerID string) *ProviderCounters {
	key := pairKey(agentID, providerID)
	t.mux.Lock()
	defer t.mux.Unlock()
	ret, ok := t.providers[key]
	if !ok {
		ret = &ProviderCounters{}
		t.providers[key] = ret
	}
	return ret
}

func (t *Tracker) capabilityCounters(agentID, capabilityID string) *CapabilityCounters {
	key := pairKey(agentID, capabilityID)
	t.mux.Lock()
	defer t.mux.Unlock()
	ret, ok := t.capabilities[key]
	if !ok {
		ret = &CapabilityCounters{}
		t.capabilities[key] = ret
	}
	return ret
}

// OnConnect records a session attaching to a provider.
func (t *Tracker) OnConnect(agentID, providerID string) {
	now := time.Now()
	counters := t.providerCounters(agentID, providerID)
	counters.Connects.Add(1)
	counters.Connected.Add(1)
	counters.touch(now)
	t.emit(event{connect: true, agentID: agentID, providerID: providerID, at: now})
}

// OnDisconnect records the matching detach; callers guarantee exactly one per
// OnConnect, including abnormal session termination.
func (t *Tracker) OnDisconnect(agentID, providerID string) {
	now := time.Now()
	counters := t.providerCounters(agentID, providerID)
	counters.Disconnects.Add(1)
	counters.Connected.Add(-1)
	counters.touch(now)
	t.emit(event{disconnect: true, agentID: agentID, providerID: providerID, at: now})
}

// OnInvoke records one successfully dispatched call.
func (t *Tracker) OnInvoke(agentID string, capability *registry.Capability) {
	now := time.Now()
	counters := t.providerCounters(agentID, capability.ProviderID)
	switch capability.Kind {
	case registry.KindTool:
		counters.ToolCalls.Add(1)
	case registry.KindResource:
		counters.ResourceReads.Add(1)
	case registry.KindPrompt:
		counters.PromptGets.Add(1)
	}
	counters.touch(now)
	capCounters := t.capabilityCounters(agentID, capability.ID)
	capCounters.Calls.Add(1)
	capCounters.touch(now)
	t.emit(event{invocation: &directory.Invocation{
		AgentID:      agentID,
		ProviderID:   capability.ProviderID,
		CapabilityID: capability.ID,
		Kind:         string(capability.Kind),
		At:           now,
	}})
}

// OnFailure records a dispatch attempt that reached the upstream but failed,
// timeouts included. Failed dispatches never bump the success counters.
func (t *Tracker) OnFailure(agentID string, capability *registry.Capability) {
	now := time.Now()
	counters := t.providerCounters(agentID, capability.ProviderID)
	counters.Failures.Add(1)
	counters.touch(now)
	capCounters := t.capabilityCounters(agentID, capability.ID)
	capCounters.Failures.Add(1)
	capCounters.touch(now)
	t.emit(event{invocation: &directory.Invocation{
		AgentID:      agentID,
		ProviderID:   capability.ProviderID,
		CapabilityID: capability.ID,
		Kind:         string(capability.Kind),
		Failed:       true,
		At:           now,
	}})
}

// Provider returns the counters for an (agent, provider) pair, nil when the
// pair has no recorded activity.
func (t *Tracker) Provider(agentID, providerID string) *ProviderCounters {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.providers[pairKey(agentID, providerID)]
}

// Capability returns the counters for an (agent, capability) pair.
func (t *Tracker) Capability(agentID, capabilityID string) *CapabilityCounters {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.capabilities[pairKey(agentID, capabilityID)]
}
