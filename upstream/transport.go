package upstream

import (
	"context"
	"fmt"
	"sort"

	"github.com/viant/jsonrpc/transport"
	"github.com/viant/jsonrpc/transport/client/http/sse"
	"github.com/viant/jsonrpc/transport/client/http/streamable"
	"github.com/viant/jsonrpc/transport/client/stdio"
	"github.com/viant/mcp-bridge/directory"
)

// DialFunc opens one JSON-RPC transport to an upstream provider.
type DialFunc func(ctx context.Context) (transport.Transport, error)

// dialer builds the transport factory matching the provider's launch spec.
func dialer(spec *directory.ProviderSpec) DialFunc {
	return func(ctx context.Context) (transport.Transport, error) {
		switch spec.Type {
		case directory.ProviderTypeStdio:
			command := spec.Command
			args := spec.Args
			if len(spec.Env) > 0 {
				// env(1) carries per-provider variables into the subprocess.
				command, args = withEnv(spec)
			}
			ret, err := stdio.New(command, stdio.WithArguments(args...))
			if err != nil {
				return nil, fmt.Errorf("failed to create stdio transport for %v: %w", spec.ID, err)
			}
			return ret, nil
		case directory.ProviderTypeSSE:
			ret, err := sse.New(ctx, spec.URL)
			if err != nil {
				return nil, fmt.Errorf("failed to create SSE transport for %v: %w", spec.ID, err)
			}
			return ret, nil
		case directory.ProviderTypeStreamable:
			ret, err := streamable.New(ctx, spec.URL)
			if err != nil {
				return nil, fmt.Errorf("failed to create streamable transport for %v: %w", spec.ID, err)
			}
			return ret, nil
		}
		return nil, fmt.Errorf("unsupported provider type: %v", spec.Type)
	}
}

func withEnv(spec *directory.ProviderSpec) (string, []string) {
	keys := make([]string, 0, len(spec.Env))
	for key := range spec.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys)+1+len(spec.Args))
	for _, key := range keys {
		args = append(args, key+"="+spec.Env[key])
	}
	args = append(args, spec.Command)
	args = append(args, spec.Args...)
	return "env", args
}
