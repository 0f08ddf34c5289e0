package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"

	"github.com/viant/mcp-bridge/directory"
	"github.com/viant/mcp-bridge/registry"
)

type mockTransport struct {
	send   func(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error)
	broken atomic.Bool
}

func (m *mockTransport) Notify(context.Context, *jsonrpc.Notification) error { return nil }

func (m *mockTransport) Send(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error) {
	if m.broken.Load() {
		return nil, errors.New("broken pipe")
	}
	return m.send(ctx, request)
}

var _ transport.Transport = (*mockTransport)(nil)

func respond(t *testing.T, result interface{}) (*jsonrpc.Response, error) {
	t.Helper()
	data, err := json.Marshal(result)
	assert.NoError(t, err)
	return &jsonrpc.Response{Jsonrpc: jsonrpc.Version, Result: data}, nil
}

// fakeProvider serves the handshake, paginated listings and tool calls of a
// minimal upstream exposing two tools and one prompt.
func fakeProvider(t *testing.T) *mockTransport {
	t.Helper()
	aTransport := &mockTransport{}
	aTransport.send = func(_ context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error) {
		switch request.Method {
		case schema.MethodInitialize:
			return respond(t, &schema.InitializeResult{
				ProtocolVersion: schema.LatestProtocolVersion,
				ServerInfo:      schema.Implementation{Name: "fake", Version: "1.0"},
			})
		case schema.MethodToolsList:
			params := &schema.ListToolsRequestParams{}
			assert.NoError(t, json.Unmarshal(request.Params, params))
			if params.Cursor == nil {
				next := "page-2"
				return respond(t, &schema.ListToolsResult{
					Tools:      []schema.Tool{{Name: "list_files", InputSchema: schema.ToolInputSchema{Type: "object"}}},
					NextCursor: &next,
				})
			}
			assert.Equal(t, "page-2", *params.Cursor)
			return respond(t, &schema.ListToolsResult{
				Tools: []schema.Tool{{Name: "read_file", InputSchema: schema.ToolInputSchema{Type: "object"}}},
			})
		case schema.MethodResourcesList:
			// provider without a resources surface
			return &jsonrpc.Response{
				Jsonrpc: jsonrpc.Version,
				Error:   jsonrpc.NewMethodNotFound("resources/list not supported", nil),
			}, nil
		case schema.MethodPromptsList:
			return respond(t, &schema.ListPromptsResult{Prompts: []schema.Prompt{{Name: "summarize"}}})
		case schema.MethodToolsCall:
			return respond(t, &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Text: "done"}}})
		}
		return nil, errors.New("unexpected method: " + request.Method)
	}
	return aTransport
}

func stdioSpec() *directory.ProviderSpec {
	return &directory.ProviderSpec{ID: "p1", Name: "p1", Type: directory.ProviderTypeStdio, Command: "fake"}
}

func TestConnector_Connect(t *testing.T) {
	aTransport := fakeProvider(t)
	aRegistry := registry.New(nil)
	connector := New(stdioSpec(), aRegistry, nil, WithDial(func(context.Context) (transport.Transport, error) {
		return aTransport, nil
	}))

	assert.NoError(t, connector.Connect(context.Background()))
	assert.Equal(t, StateConnected, connector.State())

	view := aRegistry.Snapshot()
	assert.Equal(t, 3, view.Len(), "two tool pages plus one prompt")
	_, ok := view.Lookup(registry.CapabilityID("p1", registry.KindTool, "list_files"))
	assert.True(t, ok)
	_, ok = view.Lookup(registry.CapabilityID("p1", registry.KindTool, "read_file"))
	assert.True(t, ok)
	_, ok = view.Lookup(registry.CapabilityID("p1", registry.KindPrompt, "summarize"))
	assert.True(t, ok)
}

func TestConnector_CallTool(t *testing.T) {
	aTransport := fakeProvider(t)
	aRegistry := registry.New(nil)
	connector := New(stdioSpec(), aRegistry, nil, WithDial(func(context.Context) (transport.Transport, error) {
		return aTransport, nil
	}))
	assert.NoError(t, connector.Connect(context.Background()))

	result, err := connector.CallTool(context.Background(), &schema.CallToolRequestParams{Name: "list_files"})
	assert.NoError(t, err)
	if assert.NotNil(t, result) {
		assert.Equal(t, "done", result.Content[0].Text)
	}
}

func TestConnector_DispatchBeforeConnect(t *testing.T) {
	aRegistry := registry.New(nil)
	connector := New(stdioSpec(), aRegistry, nil, WithDial(func(context.Context) (transport.Transport, error) {
		return fakeProvider(t), nil
	}))

	_, err := connector.CallTool(context.Background(), &schema.CallToolRequestParams{Name: "list_files"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestConnector_TransportFailure(t *testing.T) {
	aTransport := fakeProvider(t)
	aRegistry := registry.New(nil)
	var dials atomic.Int64
	connector := New(stdioSpec(), aRegistry, nil, WithDial(func(context.Context) (transport.Transport, error) {
		if dials.Add(1) > 1 {
			return nil, errors.New("provider is gone")
		}
		return aTransport, nil
	}))
	assert.NoError(t, connector.Connect(context.Background()))
	assert.Equal(t, 3, aRegistry.Snapshot().Len())

	aTransport.broken.Store(true)
	_, err := connector.CallTool(context.Background(), &schema.CallToolRequestParams{Name: "list_files"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, StateErrored, connector.State())
	assert.Equal(t, 0, aRegistry.Snapshot().Len(), "errored provider drops out of the aggregate")

	// further dispatches are rejected before touching the transport
	_, err = connector.ReadResource(context.Background(), &schema.ReadResourceRequestParams{Uri: "file:///x"})
	assert.ErrorIs(t, err, ErrUnavailable)

	connector.Close()
}

func TestConnector_CancelledContext(t *testing.T) {
	aTransport := fakeProvider(t)
	aRegistry := registry.New(nil)
	connector := New(stdioSpec(), aRegistry, nil, WithDial(func(context.Context) (transport.Transport, error) {
		return aTransport, nil
	}))
	assert.NoError(t, connector.Connect(context.Background()))

	aTransport.send = func(ctx context.Context, _ *jsonrpc.Request) (*jsonrpc.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := connector.CallTool(ctx, &schema.CallToolRequestParams{Name: "list_files"})
	assert.ErrorIs(t, err, context.Canceled)
	// a caller-side cancellation is not a connection fault
	assert.Equal(t, StateConnected, connector.State())
}

func TestWithEnv(t *testing.T) {
	spec := &directory.ProviderSpec{
		ID:      "p1",
		Type:    directory.ProviderTypeStdio,
		Command: "mcp-server",
		Args:    []string{"--verbose"},
		Env:     map[string]string{"B_KEY": "2", "A_KEY": "1"},
	}
	command, args := withEnv(spec)
	assert.Equal(t, "env", command)
	assert.Equal(t, []string{"A_KEY=1", "B_KEY=2", "mcp-server", "--verbose"}, args)
}
