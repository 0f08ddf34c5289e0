package bridge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/viant/mcp-bridge/auth"
	"github.com/viant/mcp-bridge/directory"
	"github.com/viant/mcp-bridge/directory/file"
	"github.com/viant/mcp-bridge/directory/postgres"
	"github.com/viant/mcp-bridge/directory/sqlite"
	"github.com/viant/mcp-bridge/registry"
	"github.com/viant/mcp-bridge/router"
	"github.com/viant/mcp-bridge/server"
	"github.com/viant/mcp-bridge/upstream"
	"github.com/viant/mcp-bridge/usage"
)

// Service wires the directory store, upstream connectors, registry, router and
// serving endpoint into one process.
type Service struct {
	options    *Options
	logger     *zap.Logger
	store      directory.Store
	registry   *registry.Registry
	connectors []*upstream.Connector
	tracker    *usage.Tracker
	router     *router.Router
	server     *server.Server
}

// New builds a service from options: it opens the directory store, connects
// the registered upstream providers and assembles the serving endpoint. It
// fails when no directory is configured or no upstream could be reached.
func New(ctx context.Context, options *Options) (*Service, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(options.LogLevel)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, options)
	if err != nil {
		return nil, err
	}
	ret := &Service{
		options:  options,
		logger:   logger,
		store:    store,
		registry: registry.New(logger),
	}
	if err := ret.connectUpstreams(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	ret.tracker = usage.NewTracker(store, logger)
	ret.router = router.New(ret.registry, ret.tracker, logger)
	serverOptions := []server.Option{
		server.WithResolver(auth.NewResolver(store)),
		server.WithRegistry(ret.registry),
		server.WithRouter(ret.router),
		server.WithTracker(ret.tracker),
		server.WithLogger(logger),
		server.WithEnvAuth(options.Transport == TransportStdio),
		server.WithEndpointAddress(options.Address()),
	}
	if len(options.CORSOrigins) > 0 {
		serverOptions = append(serverOptions, server.WithCORS(server.NewCors(options.CORSOrigins)))
	}
	srv, err := server.New(serverOptions...)
	if err != nil {
		ret.Shutdown(ctx)
		return nil, err
	}
	ret.server = srv
	return ret, nil
}

// Server exposes the underlying endpoint, used by embedding applications.
func (s *Service) Server() *server.Server { return s.server }

// Tracker exposes the usage tracker for inspection.
func (s *Service) Tracker() *usage.Tracker { return s.tracker }

// ListenAndServe serves the configured transport until the context is
// cancelled or the listener fails.
func (s *Service) ListenAndServe(ctx context.Context) error {
	switch s.options.Transport {
	case TransportStdio:
		return s.server.Stdio(ctx).ListenAndServe()
	case TransportStreamable:
		s.server.UseStreamableHTTP(true)
	case TransportSSE:
	default:
		return fmt.Errorf("unsupported transport: %v", s.options.Transport)
	}
	endpoint := s.server.HTTP(ctx, s.options.Address())
	baseURL := s.options.BaseURL
	if baseURL == "" {
		baseURL = "http://" + endpoint.Addr
	}
	s.logger.Info("listening",
		zap.String("transport", s.options.Transport),
		zap.String("addr", endpoint.Addr),
		zap.String("baseURL", baseURL))
	go func() {
		<-ctx.Done()
		_ = endpoint.Close()
	}()
	return endpoint.ListenAndServe()
}

// Shutdown closes connectors, flushes usage and releases the store.
func (s *Service) Shutdown(ctx context.Context) {
	for _, connector := range s.connectors {
		connector.Close()
	}
	if s.tracker != nil {
		s.tracker.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("failed to close directory store", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}

// connectUpstreams dials every registered provider concurrently. Individual
// failures are tolerated, but at least one provider must come up.
func (s *Service) connectUpstreams(ctx context.Context) error {
	specs, err := s.store.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}
	if len(specs) == 0 {
		return fmt.Errorf("provider directory was empty")
	}
	group, groupCtx := errgroup.WithContext(ctx)
	connected := make([]bool, len(specs))
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return err
		}
		connector := upstream.New(spec, s.registry, s.logger)
		s.connectors = append(s.connectors, connector)
		i := i
		group.Go(func() error {
			if err := connector.Connect(groupCtx); err != nil {
				s.logger.Warn("failed to connect provider",
					zap.String("provider", connector.ProviderID()), zap.Error(err))
				return nil
			}
			connected[i] = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for _, ok := range connected {
		if ok {
			return nil
		}
	}
	return fmt.Errorf("no upstream provider was reachable")
}

func openStore(ctx context.Context, options *Options) (directory.Store, error) {
	switch {
	case strings.HasPrefix(options.DSN, "postgres://"), strings.HasPrefix(options.DSN, "postgresql://"):
		return postgres.New(ctx, options.DSN)
	case options.DSN != "":
		return sqlite.New(ctx, options.DSN)
	default:
		return file.New(ctx, options.Config)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	// stdout carries JSON-RPC frames in stdio mode, logs must stay on stderr
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %v: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}
