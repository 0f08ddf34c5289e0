package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/viant/mcp-bridge/directory"
	"github.com/viant/mcp-bridge/registry"
)

// State is the connector's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	}
	return "disconnected"
}

var (
	// ErrUnavailable reports a provider that is not currently connected.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrProtocol reports malformed data returned by an upstream provider.
	ErrProtocol = errors.New("upstream protocol violation")
)

// Connector owns one long-lived connection to one upstream provider: it
// performs the initialize handshake, builds capability snapshots and forwards
// dispatch requests. A lost connection flips the connector to Errored and
// starts a bounded-backoff reconnect loop; dispatches meanwhile fail with
// ErrUnavailable instead of reaching the dead transport.
type Connector struct {
	spec     *directory.ProviderSpec
	registry *registry.Registry
	logger   *zap.Logger
	dial     DialFunc
	info     schema.Implementation

	mux       sync.Mutex
	transport transport.Transport

	// stdio subprocess pipes admit one in-flight request at a time
	serial *sync.Mutex

	state        atomic.Int32
	version      atomic.Int64
	closed       atomic.Bool
	reconnecting atomic.Bool
}

// Option customizes a connector.
type Option func(c *Connector)

// WithDial overrides the transport factory, mainly for tests.
func WithDial(dial DialFunc) Option {
	return func(c *Connector) {
		c.dial = dial
	}
}

// New creates a connector for the given provider spec; call Connect to open it.
func New(spec *directory.ProviderSpec, aRegistry *registry.Registry, logger *zap.Logger, options ...Option) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := &Connector{
		spec:     spec,
		registry: aRegistry,
		logger:   logger.With(zap.String("provider", spec.ID)),
		dial:     dialer(spec),
		info:     schema.Implementation{Name: "mcp-bridge", Version: "0.1"},
	}
	if spec.Type == directory.ProviderTypeStdio {
		ret.serial = &sync.Mutex{}
	}
	for _, option := range options {
		option(ret)
	}
	aRegistry.Register(spec.ID, ret)
	return ret
}

// ProviderID returns the owning provider's id.
func (c *Connector) ProviderID() string {
	return c.spec.ID
}

// State returns the current connection state.
func (c *Connector) State() State {
	return State(c.state.Load())
}

// Version returns the current snapshot version.
func (c *Connector) Version() int64 {
	return c.version.Load()
}

// Connect opens the transport, performs the protocol handshake, lists the
// provider's capabilities and publishes the snapshot to the registry.
func (c *Connector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("connector %v was closed", c.spec.ID)
	}
	c.state.Store(int32(StateConnecting))
	aTransport, err := c.dial(ctx)
	if err != nil {
		c.state.Store(int32(StateErrored))
		return err
	}
	c.mux.Lock()
	c.transport = aTransport
	c.mux.Unlock()

	if err := c.initialize(ctx); err != nil {
		c.state.Store(int32(StateErrored))
		return err
	}
	snapshot, err := c.listCapabilities(ctx)
	if err != nil {
		c.state.Store(int32(StateErrored))
		return err
	}
	c.registry.Publish(snapshot)
	c.state.Store(int32(StateConnected))
	c.logger.Info("connected",
		zap.Int64("snapshotVersion", snapshot.Version),
		zap.Int("capabilities", len(snapshot.Capabilities)))
	return nil
}

// Close tears the connector down for good; no reconnect is attempted.
func (c *Connector) Close() {
	c.closed.Store(true)
	c.state.Store(int32(StateDisconnected))
}

func (c *Connector) initialize(ctx context.Context) error {
	params := &schema.InitializeRequestParams{
		Capabilities:    schema.ClientCapabilities{},
		ClientInfo:      c.info,
		ProtocolVersion: schema.LatestProtocolVersion,
	}
	if _, err := send[schema.InitializeRequestParams, schema.InitializeResult](ctx, c, schema.MethodInitialize, params); err != nil {
		return fmt.Errorf("initialize handshake failed for %v: %w", c.spec.ID, err)
	}
	c.mux.Lock()
	aTransport := c.transport
	c.mux.Unlock()
	if err := aTransport.Notify(ctx, &jsonrpc.Notification{Method: schema.MethodNotificationInitialized}); err != nil {
		return fmt.Errorf("failed to notify initialized for %v: %w", c.spec.ID, err)
	}
	return nil
}

// listCapabilities issues the three list calls and assembles the next snapshot.
func (c *Connector) listCapabilities(ctx context.Context) (*registry.ProviderSnapshot, error) {
	snapshot := &registry.ProviderSnapshot{
		ProviderID: c.spec.ID,
		Version:    c.version.Add(1),
	}
	var cursor *string
	for {
		result, err := send[schema.ListToolsRequestParams, schema.ListToolsResult](ctx, c, schema.MethodToolsList, &schema.ListToolsRequestParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, tool := range result.Tools {
			snapshot.Capabilities = append(snapshot.Capabilities, registry.NewTool(c.spec.ID, tool))
		}
		if result.NextCursor == nil || *result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	cursor = nil
	for {
		result, err := send[schema.ListResourcesRequestParams, schema.ListResourcesResult](ctx, c, schema.MethodResourcesList, &schema.ListResourcesRequestParams{Cursor: cursor})
		if err != nil {
			if isMethodNotFound(err) { // provider has no resources surface
				break
			}
			return nil, err
		}
		for _, resource := range result.Resources {
			snapshot.Capabilities = append(snapshot.Capabilities, registry.NewResource(c.spec.ID, resource))
		}
		if result.NextCursor == nil || *result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	cursor = nil
	for {
		result, err := send[schema.ListPromptsRequestParams, schema.ListPromptsResult](ctx, c, schema.MethodPromptsList, &schema.ListPromptsRequestParams{Cursor: cursor})
		if err != nil {
			if isMethodNotFound(err) {
				break
			}
			return nil, err
		}
		for _, prompt := range result.Prompts {
			snapshot.Capabilities = append(snapshot.Capabilities, registry.NewPrompt(c.spec.ID, prompt))
		}
		if result.NextCursor == nil || *result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	return snapshot, nil
}

// Relist refreshes the provider's snapshot on an already open connection.
func (c *Connector) Relist(ctx context.Context) error {
	if c.State() != StateConnected {
		return ErrUnavailable
	}
	snapshot, err := c.listCapabilities(ctx)
	if err != nil {
		return err
	}
	c.registry.Publish(snapshot)
	return nil
}

// CallTool forwards a tools/call request to the provider.
func (c *Connector) CallTool(ctx context.Context, params *schema.CallToolRequestParams) (*schema.CallToolResult, error) {
	return dispatch[schema.CallToolRequestParams, schema.CallToolResult](ctx, c, schema.MethodToolsCall, params)
}

// ReadResource forwards a resources/read request to the provider.
func (c *Connector) ReadResource(ctx context.Context, params *schema.ReadResourceRequestParams) (*schema.ReadResourceResult, error) {
	return dispatch[schema.ReadResourceRequestParams, schema.ReadResourceResult](ctx, c, schema.MethodResourcesRead, params)
}

// GetPrompt forwards a prompts/get request to the provider.
func (c *Connector) GetPrompt(ctx context.Context, params *schema.GetPromptRequestParams) (*schema.GetPromptResult, error) {
	return dispatch[schema.GetPromptRequestParams, schema.GetPromptResult](ctx, c, schema.MethodPromptsGet, params)
}

// dispatch guards a forwarded call with the connection state and, for stdio
// providers, the per-provider serialization lock.
func dispatch[P any, R any](ctx context.Context, c *Connector, method string, params *P) (*R, error) {
	if c.State() != StateConnected {
		return nil, fmt.Errorf("%w: provider %v is %v", ErrUnavailable, c.spec.ID, c.State())
	}
	if c.serial != nil {
		c.serial.Lock()
		defer c.serial.Unlock()
	}
	return send[P, R](ctx, c, method, params)
}

// send issues one typed request over the provider transport.
func send[P any, R any](ctx context.Context, c *Connector, method string, params *P) (*R, error) {
	request, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	c.mux.Lock()
	aTransport := c.transport
	c.mux.Unlock()
	if aTransport == nil {
		return nil, fmt.Errorf("%w: provider %v has no transport", ErrUnavailable, c.spec.ID)
	}
	response, err := aTransport.Send(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			// cancelled or timed out on our side, the connection may be fine
			return nil, ctx.Err()
		}
		c.markErrored(err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if response.Error != nil {
		return nil, response.Error
	}
	result := new(R)
	if err := json.Unmarshal(response.Result, result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal %v result: %v", ErrProtocol, method, err)
	}
	return result, nil
}

// markErrored flips the connector to Errored, excludes its capabilities from
// the registry aggregate and kicks off the reconnect loop.
func (c *Connector) markErrored(cause error) {
	if c.closed.Load() {
		return
	}
	c.state.Store(int32(StateErrored))
	c.registry.MarkErrored(c.spec.ID)
	c.logger.Warn("connection lost", zap.Error(cause))
	if c.reconnecting.CompareAndSwap(false, true) {
		go c.reconnect()
	}
}

func (c *Connector) reconnect() {
	defer c.reconnecting.Store(false)
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.MaxInterval = time.Minute
	_, err := backoff.Retry(context.Background(), func() (any, error) {
		if c.closed.Load() {
			return nil, backoff.Permanent(errors.New("connector closed"))
		}
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return nil, c.Connect(connectCtx)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(10),
	)
	if err != nil {
		c.logger.Error("reconnect gave up", zap.Error(err))
	}
}

// methodNotFound is the JSON-RPC 2.0 method-not-found code.
const methodNotFound = -32601

func isMethodNotFound(err error) bool {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == methodNotFound
	}
	return false
}
