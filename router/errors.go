package router

import (
	"fmt"
	"time"

	"github.com/viant/jsonrpc"

	"github.com/viant/mcp-bridge/registry"
)

// Bridge error codes; -32002 matches the protocol's resource-not-found code.
const (
	CodeUnauthorized           = -32001
	CodeCapabilityNotAvailable = -32002
	CodeUpstreamUnavailable    = -32010
	CodeDispatchTimeout        = -32011
	CodeUpstreamError          = -32012
	CodeProtocolViolation      = -32013
)

// Stable error kind strings carried in the error data of every bridge error.
const (
	KindUnauthorized           = "unauthorized"
	KindCapabilityNotAvailable = "capability_not_available"
	KindUpstreamUnavailable    = "upstream_unavailable"
	KindDispatchTimeout        = "dispatch_timeout"
	KindUpstreamError          = "upstream_error"
	KindProtocolViolation      = "protocol_violation"
)

// NewUnauthorized creates the generic unauthorized response; it deliberately
// carries no detail that would distinguish unknown ids from bad secrets.
func NewUnauthorized() *jsonrpc.Error {
	return jsonrpc.NewError(CodeUnauthorized, "invalid credentials", map[string]interface{}{"kind": KindUnauthorized})
}

// NewCapabilityNotAvailable reports a target outside the session's view.
func NewCapabilityNotAvailable(kind registry.Kind, name string) *jsonrpc.Error {
	return jsonrpc.NewError(CodeCapabilityNotAvailable,
		fmt.Sprintf("%v %q is not available", kind, name),
		map[string]interface{}{"kind": KindCapabilityNotAvailable})
}

// NewUpstreamUnavailable reports an errored provider; the call is retryable.
func NewUpstreamUnavailable(providerID string) *jsonrpc.Error {
	return jsonrpc.NewError(CodeUpstreamUnavailable,
		fmt.Sprintf("upstream provider %v is unavailable", providerID),
		map[string]interface{}{"kind": KindUpstreamUnavailable, "retryable": true})
}

// NewDispatchTimeout reports a dispatch that exceeded the per-call budget,
// distinct from UpstreamUnavailable so slow and broken upstreams stay apart.
func NewDispatchTimeout(providerID string, timeout time.Duration) *jsonrpc.Error {
	return jsonrpc.NewError(CodeDispatchTimeout,
		fmt.Sprintf("dispatch to provider %v timed out after %v", providerID, timeout),
		map[string]interface{}{"kind": KindDispatchTimeout, "retryable": true})
}

// NewUpstreamError relays an upstream-reported error under a bridge kind.
func NewUpstreamError(cause *jsonrpc.Error) *jsonrpc.Error {
	return jsonrpc.NewError(CodeUpstreamError, cause.Message,
		map[string]interface{}{"kind": KindUpstreamError, "code": cause.Code})
}

// NewProtocolViolation surfaces malformed upstream data as an opaque error.
func NewProtocolViolation() *jsonrpc.Error {
	return jsonrpc.NewError(CodeProtocolViolation, "internal error",
		map[string]interface{}{"kind": KindProtocolViolation})
}
