package server

import (
	"context"
	"errors"

	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/viant/mcp-bridge/auth"
	"github.com/viant/mcp-bridge/registry"
	"github.com/viant/mcp-bridge/router"
	"github.com/viant/mcp-bridge/usage"
)

// Server is the bridge's downstream surface. It terminates client transports
// (stdio, SSE, streamable HTTP) and creates one Handler per client session;
// handlers share the capability registry, router and usage tracker.
type Server struct {
	resolver *auth.Resolver
	registry *registry.Registry
	router   *router.Router
	tracker  *usage.Tracker

	info            schema.Implementation
	instructions    *string
	protocolVersion string
	loggerName      string
	logger          *zap.Logger

	// stdio sessions authenticate from the environment
	envAuth bool

	httpServer
	stdioServer
}

// NewHandler creates a new per-session handler instance.
func (s *Server) NewHandler(ctx context.Context, aTransport transport.Transport) transport.Handler {
	return s.newHandler(ctx, aTransport)
}

// New creates a new Server instance.
func New(options ...Option) (*Server, error) {
	s := &Server{
		info: schema.Implementation{
			Name:    "mcp-bridge",
			Version: "0.1",
		},
		loggerName:      "bridge",
		protocolVersion: schema.LatestProtocolVersion,
		logger:          zap.NewNop(),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if s.resolver == nil {
		return nil, errors.New("no auth resolver specified")
	}
	if s.registry == nil {
		return nil, errors.New("no capability registry specified")
	}
	if s.router == nil {
		return nil, errors.New("no request router specified")
	}
	if s.tracker == nil {
		s.tracker = usage.NewTracker(nil, s.logger)
	}
	return s, nil
}
