package server

import (
	"net/http"

	"github.com/viant/jsonrpc/transport/server/stdio"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/viant/mcp-bridge/auth"
	"github.com/viant/mcp-bridge/registry"
	"github.com/viant/mcp-bridge/router"
	"github.com/viant/mcp-bridge/usage"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithResolver sets the auth resolver used to authenticate sessions.
func WithResolver(resolver *auth.Resolver) Option {
	return func(s *Server) error {
		s.resolver = resolver
		return nil
	}
}

// WithRegistry sets the capability registry.
func WithRegistry(aRegistry *registry.Registry) Option {
	return func(s *Server) error {
		s.registry = aRegistry
		return nil
	}
}

// WithRouter sets the request router.
func WithRouter(aRouter *router.Router) Option {
	return func(s *Server) error {
		s.router = aRouter
		return nil
	}
}

// WithTracker sets the usage tracker.
func WithTracker(tracker *usage.Tracker) Option {
	return func(s *Server) error {
		s.tracker = tracker
		return nil
	}
}

// WithImplementation sets the server implementation info.
func WithImplementation(implementation schema.Implementation) Option {
	return func(s *Server) error {
		s.info = implementation
		return nil
	}
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) error {
		s.instructions = &instructions
		return nil
	}
}

// WithProtocolVersion overrides the advertised protocol version.
func WithProtocolVersion(version string) Option {
	return func(s *Server) error {
		s.protocolVersion = version
		return nil
	}
}

// WithLoggerName sets the per-session notification logger name.
func WithLoggerName(name string) Option {
	return func(s *Server) error {
		s.loggerName = name
		return nil
	}
}

// WithLogger sets the process logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithEnvAuth enables environment-variable authentication for transports
// without headers (stdio).
func WithEnvAuth(flag bool) Option {
	return func(s *Server) error {
		s.envAuth = flag
		return nil
	}
}

// WithEndpointAddress sets the HTTP bind address.
func WithEndpointAddress(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithCORS adds a CORS handler to the server.
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.corsConfig = cors
		handler := &corsHandler{Cors: cors}
		s.corsHandler = handler.Middleware
		return nil
	}
}

// WithSSEURI overrides the SSE stream endpoint URI.
func WithSSEURI(uri string) Option {
	return func(s *Server) error {
		s.sseURI = uri
		return nil
	}
}

// WithSSEMessageURI overrides the SSE message endpoint URI.
func WithSSEMessageURI(uri string) Option {
	return func(s *Server) error {
		s.sseMessageURI = uri
		return nil
	}
}

// WithStreamableURI overrides the streamable HTTP endpoint URI.
func WithStreamableURI(uri string) Option {
	return func(s *Server) error {
		s.streamableURI = uri
		return nil
	}
}

// WithRootRedirect redirects "/" to the active HTTP transport base.
func WithRootRedirect(flag bool) Option {
	return func(s *Server) error {
		s.rootRedirect = flag
		return nil
	}
}

// WithStdioOptions passes options through to the stdio transport server.
func WithStdioOptions(options ...stdio.Option) Option {
	return func(s *Server) error {
		s.stdioServerOption = append(s.stdioServerOption, options...)
		return nil
	}
}

// WithCustomHTTPHandler registers an additional HTTP handler at path.
func WithCustomHTTPHandler(path string, handler http.HandlerFunc) Option {
	return func(s *Server) error {
		if s.customHTTPHandlers == nil {
			s.customHTTPHandlers = make(map[string]http.HandlerFunc)
		}
		s.customHTTPHandlers[path] = handler
		return nil
	}
}
