package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-protocol/syncmap"
	"go.uber.org/zap"

	"github.com/viant/mcp-bridge/auth"
	"github.com/viant/mcp-bridge/internal/conv"
	"github.com/viant/mcp-bridge/router"
	"github.com/viant/mcp-bridge/session"
)

// Handler serves one client session: it authenticates on initialize, computes
// the session's filtered capability view, answers list requests from the held
// view and hands call/read/get requests to the request router.
type Handler struct {
	*Server
	transport.Notifier
	*Logger

	session          *session.Session
	clientInitialize *schema.InitializeRequestParams
	loggingLevel     schema.LoggingLevel
	activeContexts   *syncmap.Map[int, *activeContext]

	// providers referenced by the session view, for connection accounting;
	// connMu orders Activate+OnConnect against Close+OnDisconnect
	connMu             sync.Mutex
	connectedProviders []string
	closeOnce          sync.Once
}

func (s *Server) newHandler(ctx context.Context, aTransport transport.Transport) *Handler {
	ret := &Handler{
		Server:         s,
		Notifier:       aTransport,
		session:        session.New(),
		activeContexts: syncmap.NewMap[int, *activeContext](),
	}
	ret.Logger = NewLogger(s.loggerName, &ret.loggingLevel, ret.Notifier)
	// the transport cancels ctx when the client connection goes away
	go func() {
		<-ctx.Done()
		ret.teardown()
	}()
	return ret
}

// Session exposes the handler's session, mainly for tests and diagnostics.
func (h *Handler) Session() *session.Session {
	return h.session
}

// Serve handles incoming JSON-RPC requests.
func (h *Handler) Serve(parent context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	if jsonrpc.Version != request.Jsonrpc {
		response.Error = jsonrpc.NewInvalidRequest("invalid JSON-RPC version", nil)
		return
	}
	id := conv.AsInt(request.Id)
	ctx, cancel := context.WithCancel(parent)
	active := &activeContext{Context: ctx, CancelFunc: cancel}
	h.activeContexts.Put(id, active)
	defer h.cancelOperation(id)

	switch request.Method {
	case schema.MethodInitialize:
		result, err := h.initialize(ctx, request)
		h.setResponse(response, result, err)
	case schema.MethodPing:
		h.setResponse(response, &schema.PingResult{}, nil)
	case schema.MethodLoggingSetLevel:
		result, err := h.setLevel(ctx, request)
		h.setResponse(response, result, err)
	default:
		h.serveActive(ctx, request, response)
	}
}

// serveActive handles every method that requires an Active session.
func (h *Handler) serveActive(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	if h.session.State() != session.StateActive {
		response.Error = router.NewUnauthorized()
		return
	}
	view := h.session.View()
	agentID := h.session.Agent().ID
	switch request.Method {
	case schema.MethodToolsList:
		h.setResponse(response, &schema.ListToolsResult{Tools: view.Tools()}, nil)
	case schema.MethodResourcesList:
		h.setResponse(response, &schema.ListResourcesResult{Resources: view.Resources()}, nil)
	case schema.MethodResourcesTemplatesList:
		h.setResponse(response, &schema.ListResourceTemplatesResult{ResourceTemplates: []schema.ResourceTemplate{}}, nil)
	case schema.MethodPromptsList:
		h.setResponse(response, &schema.ListPromptsResult{Prompts: view.Prompts()}, nil)
	case schema.MethodToolsCall:
		params := &schema.CallToolRequestParams{}
		if rpcErr := parseParams(request, params); rpcErr != nil {
			response.Error = rpcErr
			return
		}
		result, rpcErr := h.router.CallTool(ctx, view, agentID, params)
		h.setResponse(response, result, rpcErr)
	case schema.MethodResourcesRead:
		params := &schema.ReadResourceRequestParams{}
		if rpcErr := parseParams(request, params); rpcErr != nil {
			response.Error = rpcErr
			return
		}
		result, rpcErr := h.router.ReadResource(ctx, view, agentID, params)
		h.setResponse(response, result, rpcErr)
	case schema.MethodPromptsGet:
		params := &schema.GetPromptRequestParams{}
		if rpcErr := parseParams(request, params); rpcErr != nil {
			response.Error = rpcErr
			return
		}
		result, rpcErr := h.router.GetPrompt(ctx, view, agentID, params)
		h.setResponse(response, result, rpcErr)
	default:
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", request.Method), request.Params)
	}
}

// initialize drives the session through authentication and view filtering.
func (h *Handler) initialize(ctx context.Context, request *jsonrpc.Request) (*schema.InitializeResult, *jsonrpc.Error) {
	initRequest := schema.InitializeRequest{Method: schema.MethodInitialize}
	if err := json.Unmarshal(request.Params, &initRequest.Params); err != nil {
		return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse: %v", err), request.Params)
	}
	h.clientInitialize = &initRequest.Params

	if !h.session.BeginAuth() {
		return nil, jsonrpc.NewInvalidRequest("initialize received on an established session", request.Params)
	}
	agent, ok := auth.AgentFromContext(ctx)
	if !ok && h.envAuth {
		resolved, err := h.resolver.ResolveFromEnv(ctx)
		if err == nil {
			agent, ok = resolved, true
		}
	}
	if !ok {
		h.session.Reject()
		h.logger.Warn("session rejected", zap.String("session", h.session.ID))
		return nil, router.NewUnauthorized()
	}
	if !h.session.Admit(agent) {
		return nil, jsonrpc.NewInvalidRequest("session closed", request.Params)
	}

	view := session.NewFilteredView(h.registry.Snapshot(), agent)
	h.connMu.Lock()
	if !h.session.Activate(view) {
		h.connMu.Unlock()
		return nil, jsonrpc.NewInvalidRequest("session closed", request.Params)
	}
	h.connectedProviders = viewProviders(view)
	for _, providerID := range h.connectedProviders {
		h.tracker.OnConnect(agent.ID, providerID)
	}
	h.connMu.Unlock()
	h.logger.Info("session active",
		zap.String("session", h.session.ID),
		zap.String("agent", agent.ClientID),
		zap.Int("capabilities", view.Len()))

	return &schema.InitializeResult{
		ProtocolVersion: h.protocolVersion,
		ServerInfo:      h.info,
		Capabilities: schema.ServerCapabilities{
			Tools:     &schema.ServerCapabilitiesTools{},
			Resources: &schema.ServerCapabilitiesResources{},
			Prompts:   &schema.ServerCapabilitiesPrompts{},
		},
		Instructions: h.instructions,
	}, nil
}

// setLevel handles the logging/setLevel method.
func (h *Handler) setLevel(_ context.Context, request *jsonrpc.Request) (*schema.SetLevelResult, *jsonrpc.Error) {
	setLevelRequest := &schema.SetLevelRequest{Method: request.Method}
	if err := json.Unmarshal(request.Params, &setLevelRequest.Params); err != nil {
		return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse: %v", err), request.Params)
	}
	h.loggingLevel = setLevelRequest.Params.Level
	return &schema.SetLevelResult{}, nil
}

// OnNotification handles incoming JSON-RPC notifications.
func (h *Handler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	switch notification.Method {
	case schema.MethodNotificationInitialized:
	case schema.MethodNotificationCancel:
		h.cancel(ctx, notification)
	}
}

// teardown closes the session and emits the matching disconnect events
// exactly once, including on abnormal termination.
func (h *Handler) teardown() {
	h.closeOnce.Do(func() {
		h.cancelAll()
		h.connMu.Lock()
		defer h.connMu.Unlock()
		wasActive := h.session.Close()
		if !wasActive {
			return
		}
		agent := h.session.Agent()
		for _, providerID := range h.connectedProviders {
			h.tracker.OnDisconnect(agent.ID, providerID)
		}
		h.logger.Info("session closed", zap.String("session", h.session.ID))
	})
}

func (h *Handler) setResponse(response *jsonrpc.Response, result interface{}, rpcError *jsonrpc.Error) {
	if rpcError != nil {
		response.Error = rpcError
		return
	}
	var err error
	response.Result, err = json.Marshal(result)
	if err != nil {
		response.Error = jsonrpc.NewInternalError(err.Error(), []byte{})
	}
}

func parseParams[T any](request *jsonrpc.Request, params *T) *jsonrpc.Error {
	if err := json.Unmarshal(request.Params, params); err != nil {
		return jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse: %v", err), request.Params)
	}
	return nil
}

func viewProviders(view *session.FilteredView) []string {
	seen := make(map[string]bool)
	var ret []string
	for _, capability := range view.All() {
		if seen[capability.ProviderID] {
			continue
		}
		seen[capability.ProviderID] = true
		ret = append(ret, capability.ProviderID)
	}
	return ret
}
