package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viant/mcp-bridge/directory"
)

type fakeStore struct {
	agents map[string]*directory.Agent
}

func (s *fakeStore) ListProviders(context.Context) ([]*directory.ProviderSpec, error) {
	return nil, nil
}

func (s *fakeStore) LookupAgent(_ context.Context, clientID string) (*directory.Agent, error) {
	agent, ok := s.agents[clientID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return agent, nil
}

func (s *fakeStore) RecordConnect(context.Context, string, string, time.Time) error    { return nil }
func (s *fakeStore) RecordDisconnect(context.Context, string, string, time.Time) error { return nil }
func (s *fakeStore) RecordInvocation(context.Context, *directory.Invocation) error     { return nil }
func (s *fakeStore) Close() error                                                      { return nil }

func newFakeStore() *fakeStore {
	return &fakeStore{agents: map[string]*directory.Agent{
		"client-1": {
			ID:         "a1",
			ClientID:   "client-1",
			SecretHash: HashSecret("s3cret"),
		},
	}}
}

func TestResolver_Resolve(t *testing.T) {
	resolver := NewResolver(newFakeStore())
	ctx := context.Background()

	agent, err := resolver.Resolve(ctx, "client-1", "s3cret")
	assert.NoError(t, err)
	if assert.NotNil(t, agent) {
		assert.Equal(t, "a1", agent.ID)
	}

	_, badSecret := resolver.Resolve(ctx, "client-1", "wrong")
	_, unknownID := resolver.Resolve(ctx, "no-such-client", "s3cret")
	assert.ErrorIs(t, badSecret, ErrUnauthorized)
	assert.ErrorIs(t, unknownID, ErrUnauthorized)
	// unknown ids and bad secrets must be indistinguishable
	assert.Equal(t, badSecret.Error(), unknownID.Error())
}

func TestResolver_ResolveFromEnv(t *testing.T) {
	resolver := NewResolver(newFakeStore())
	ctx := context.Background()

	_, err := resolver.ResolveFromEnv(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	t.Setenv(HeaderClientID, "client-1")
	t.Setenv(HeaderAPIKey, "s3cret")
	agent, err := resolver.ResolveFromEnv(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "a1", agent.ID)

	// MCP_CLIENT_SECRET is accepted in place of API_KEY
	t.Setenv(HeaderAPIKey, "")
	t.Setenv(EnvClientSecret, "s3cret")
	agent, err = resolver.ResolveFromEnv(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "a1", agent.ID)
}

func TestHashSecret(t *testing.T) {
	assert.Equal(t, HashSecret("s3cret"), HashSecret("s3cret"))
	assert.NotEqual(t, HashSecret("s3cret"), HashSecret("S3cret"))
	assert.Len(t, HashSecret(""), 64)
}
