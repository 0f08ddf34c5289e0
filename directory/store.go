package directory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by LookupAgent when no row matches the client id.
var ErrNotFound = errors.New("not found")

// Store provides read access to the provider and agent directories owned by the
// external registry service, plus the usage sink. Implementations: file (dev
// bootstrap), sqlite (development), postgres (production).
type Store interface {
	// ListProviders returns all registered upstream providers.
	ListProviders(ctx context.Context) ([]*ProviderSpec, error)

	// LookupAgent returns the agent row for a client id, or ErrNotFound.
	LookupAgent(ctx context.Context, clientID string) (*Agent, error)

	UsageStore

	Close() error
}

// UsageStore is the sink for connection lifecycle and invocation events. All
// writes are idempotent upsert-style increments keyed by (agent, provider) or
// (agent, capability); the bridge never deletes usage rows.
type UsageStore interface {
	RecordConnect(ctx context.Context, agentID, providerID string, at time.Time) error
	RecordDisconnect(ctx context.Context, agentID, providerID string, at time.Time) error
	RecordInvocation(ctx context.Context, invocation *Invocation) error
}
