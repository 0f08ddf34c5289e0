package auth

import (
	"context"
	"os"

	"github.com/viant/mcp-bridge/directory"
)

// EnvClientSecret is the fallback secret variable for stdio sessions.
const EnvClientSecret = "MCP_CLIENT_SECRET"

// ResolveFromEnv authenticates from environment variables, the only channel
// available to the headerless stdio transport: MCP_CLIENT_ID plus API_KEY (or
// MCP_CLIENT_SECRET).
func (r *Resolver) ResolveFromEnv(ctx context.Context) (*directory.Agent, error) {
	clientID := os.Getenv(HeaderClientID)
	clientSecret := os.Getenv(HeaderAPIKey)
	if clientSecret == "" {
		clientSecret = os.Getenv(EnvClientSecret)
	}
	if clientID == "" || clientSecret == "" {
		return nil, ErrUnauthorized
	}
	return r.Resolve(ctx, clientID, clientSecret)
}
