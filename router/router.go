// Package router dispatches call/read/get requests to the upstream connector
// owning the target capability, bounded by a per-call timeout, and translates
// every failure into a protocol-level error so sessions stay open.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/viant/mcp-bridge/registry"
	"github.com/viant/mcp-bridge/session"
	"github.com/viant/mcp-bridge/upstream"
	"github.com/viant/mcp-bridge/usage"
)

// DefaultTimeout bounds a single upstream dispatch.
const DefaultTimeout = 30 * time.Second

// Router routes session requests to upstream connectors.
type Router struct {
	registry *registry.Registry
	tracker  *usage.Tracker
	timeout  time.Duration
	logger   *zap.Logger
}

// Option customizes the router.
type Option func(r *Router)

// WithTimeout overrides the per-call dispatch timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Router) {
		r.timeout = timeout
	}
}

// New creates a router over the given registry and usage tracker.
func New(aRegistry *registry.Registry, tracker *usage.Tracker, logger *zap.Logger, options ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := &Router{
		registry: aRegistry,
		tracker:  tracker,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// CallTool routes a tools/call request through the owning connector.
func (r *Router) CallTool(ctx context.Context, view *session.FilteredView, agentID string, params *schema.CallToolRequestParams) (*schema.CallToolResult, *jsonrpc.Error) {
	capability, ok := view.Tool(params.Name)
	if !ok {
		return nil, NewCapabilityNotAvailable(registry.KindTool, params.Name)
	}
	return route(ctx, r, agentID, capability, func(ctx context.Context, dispatcher registry.Dispatcher) (*schema.CallToolResult, error) {
		return dispatcher.CallTool(ctx, params)
	})
}

// ReadResource routes a resources/read request through the owning connector.
func (r *Router) ReadResource(ctx context.Context, view *session.FilteredView, agentID string, params *schema.ReadResourceRequestParams) (*schema.ReadResourceResult, *jsonrpc.Error) {
	capability, ok := view.Resource(params.Uri)
	if !ok {
		return nil, NewCapabilityNotAvailable(registry.KindResource, params.Uri)
	}
	return route(ctx, r, agentID, capability, func(ctx context.Context, dispatcher registry.Dispatcher) (*schema.ReadResourceResult, error) {
		return dispatcher.ReadResource(ctx, params)
	})
}

// GetPrompt routes a prompts/get request through the owning connector.
func (r *Router) GetPrompt(ctx context.Context, view *session.FilteredView, agentID string, params *schema.GetPromptRequestParams) (*schema.GetPromptResult, *jsonrpc.Error) {
	capability, ok := view.Prompt(params.Name)
	if !ok {
		return nil, NewCapabilityNotAvailable(registry.KindPrompt, params.Name)
	}
	return route(ctx, r, agentID, capability, func(ctx context.Context, dispatcher registry.Dispatcher) (*schema.GetPromptResult, error) {
		return dispatcher.GetPrompt(ctx, params)
	})
}

// route forwards one request with the per-call timeout applied, records usage
// exactly once on success and translates failures into the error taxonomy.
func route[R any](ctx context.Context, r *Router, agentID string, capability *registry.Capability, call func(ctx context.Context, dispatcher registry.Dispatcher) (*R, error)) (*R, *jsonrpc.Error) {
	dispatcher, ok := r.registry.Dispatcher(capability.ProviderID)
	if !ok {
		return nil, NewUpstreamUnavailable(capability.ProviderID)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	result, err := call(ctx, dispatcher)
	if err != nil {
		return nil, r.translate(agentID, capability, err)
	}
	r.tracker.OnInvoke(agentID, capability)
	return result, nil
}

func (r *Router) translate(agentID string, capability *registry.Capability, err error) *jsonrpc.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		// the request reached the upstream; count the attempt as a failure
		r.tracker.OnFailure(agentID, capability)
		return NewDispatchTimeout(capability.ProviderID, r.timeout)
	case errors.Is(err, context.Canceled):
		return jsonrpc.NewInternalError("request cancelled", nil)
	case errors.Is(err, upstream.ErrUnavailable):
		return NewUpstreamUnavailable(capability.ProviderID)
	case errors.Is(err, upstream.ErrProtocol):
		r.logger.Error("upstream protocol violation",
			zap.String("provider", capability.ProviderID),
			zap.String("capability", capability.Name),
			zap.Error(err))
		r.tracker.OnFailure(agentID, capability)
		return NewProtocolViolation()
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		r.tracker.OnFailure(agentID, capability)
		return NewUpstreamError(rpcErr)
	}
	r.tracker.OnFailure(agentID, capability)
	return jsonrpc.NewInternalError(err.Error(), nil)
}
