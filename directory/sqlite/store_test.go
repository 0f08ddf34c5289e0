package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viant/mcp-bridge/directory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Providers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	spec := &directory.ProviderSpec{
		ID:      "fs",
		Name:    "filesystem",
		Type:    directory.ProviderTypeStdio,
		Command: "mcp-server-fs",
		Args:    []string{"--root", "/data"},
		Env:     map[string]string{"LOG_LEVEL": "debug"},
	}
	assert.NoError(t, store.AddProvider(ctx, spec))
	assert.NoError(t, store.AddProvider(ctx, &directory.ProviderSpec{
		ID:   "search",
		Name: "search",
		Type: directory.ProviderTypeSSE,
		URL:  "http://localhost:9000/sse",
	}))

	providers, err := store.ListProviders(ctx)
	assert.NoError(t, err)
	if assert.Len(t, providers, 2) {
		assert.Equal(t, "fs", providers[0].ID)
		assert.Equal(t, []string{"--root", "/data"}, providers[0].Args)
		assert.Equal(t, "debug", providers[0].Env["LOG_LEVEL"])
		assert.Equal(t, "http://localhost:9000/sse", providers[1].URL)
	}

	assert.Error(t, store.AddProvider(ctx, &directory.ProviderSpec{ID: "bad", Type: "carrier-pigeon"}))
}

func TestStore_Agents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	agent := &directory.Agent{
		ID:                 "a1",
		ClientID:           "client-1",
		SecretHash:         "abc123",
		Name:               "reporting agent",
		AllowedToolIDs:     []string{"t1", "t2"},
		AllowedResourceIDs: []string{"r1"},
	}
	assert.NoError(t, store.AddAgent(ctx, agent))

	loaded, err := store.LookupAgent(ctx, "client-1")
	assert.NoError(t, err)
	assert.Equal(t, "a1", loaded.ID)
	assert.Equal(t, "reporting agent", loaded.Name)
	assert.ElementsMatch(t, []string{"t1", "t2"}, loaded.AllowedToolIDs)
	assert.ElementsMatch(t, []string{"r1"}, loaded.AllowedResourceIDs)
	assert.Empty(t, loaded.AllowedPromptIDs)

	_, err = store.LookupAgent(ctx, "ghost")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	// replacing an agent replaces its allow-lists wholesale
	agent.AllowedToolIDs = []string{"t3"}
	assert.NoError(t, store.AddAgent(ctx, agent))
	loaded, err = store.LookupAgent(ctx, "client-1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"t3"}, loaded.AllowedToolIDs)
}

func TestStore_ConnectionUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, store.RecordConnect(ctx, "a1", "p1", now))
	assert.NoError(t, store.RecordConnect(ctx, "a1", "p1", now.Add(time.Minute)))
	assert.NoError(t, store.RecordDisconnect(ctx, "a1", "p1", now.Add(2*time.Minute)))

	var connects, disconnects int
	err := store.DB().QueryRowContext(ctx,
		`SELECT connect_count, disconnect_count FROM agent_mcp_usage WHERE agent_id = ? AND mcp_server_id = ?`,
		"a1", "p1").Scan(&connects, &disconnects)
	assert.NoError(t, err)
	assert.Equal(t, 2, connects)
	assert.Equal(t, 1, disconnects)
}

func TestStore_InvocationUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now()
	invocation := &directory.Invocation{
		AgentID:      "a1",
		ProviderID:   "p1",
		CapabilityID: "c1",
		Kind:         directory.KindTool,
		At:           started,
	}
	assert.NoError(t, store.RecordInvocation(ctx, invocation))
	later := *invocation
	later.At = started.Add(time.Minute)
	assert.NoError(t, store.RecordInvocation(ctx, &later))
	failed := *invocation
	failed.Failed = true
	failed.At = started.Add(2 * time.Minute)
	assert.NoError(t, store.RecordInvocation(ctx, &failed))

	var calls, failures int
	var first, last time.Time
	err := store.DB().QueryRowContext(ctx,
		`SELECT call_count, failure_count, first_called_at, last_called_at FROM agent_tool_usage WHERE agent_id = ? AND tool_id = ?`,
		"a1", "c1").Scan(&calls, &failures, &first, &last)
	assert.NoError(t, err)
	assert.Equal(t, 2, calls, "a failed dispatch is not usage")
	assert.Equal(t, 1, failures)
	assert.WithinDuration(t, started.UTC(), first, time.Second, "first activity frozen at the first record")
	assert.WithinDuration(t, failed.At.UTC(), last, time.Second)

	// a failure on a fresh capability opens the row with zero usage
	assert.NoError(t, store.RecordInvocation(ctx, &directory.Invocation{
		AgentID:      "a1",
		CapabilityID: "c3",
		Kind:         directory.KindResource,
		Failed:       true,
		At:           started,
	}))
	var accesses, resourceFailures int
	err = store.DB().QueryRowContext(ctx,
		`SELECT access_count, failure_count FROM agent_resource_usage WHERE agent_id = ? AND resource_id = ?`,
		"a1", "c3").Scan(&accesses, &resourceFailures)
	assert.NoError(t, err)
	assert.Equal(t, 0, accesses)
	assert.Equal(t, 1, resourceFailures)

	prompt := &directory.Invocation{
		AgentID:      "a1",
		CapabilityID: "c2",
		Kind:         directory.KindPrompt,
		At:           time.Now(),
	}
	assert.NoError(t, store.RecordInvocation(ctx, prompt))
	var uses int
	err = store.DB().QueryRowContext(ctx,
		`SELECT use_count FROM agent_prompt_usage WHERE agent_id = ? AND prompt_id = ?`,
		"a1", "c2").Scan(&uses)
	assert.NoError(t, err)
	assert.Equal(t, 1, uses)

	assert.Error(t, store.RecordInvocation(ctx, &directory.Invocation{Kind: "unknown"}))
}
