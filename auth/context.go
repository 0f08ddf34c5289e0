package auth

import (
	"context"

	"github.com/viant/mcp-bridge/directory"
)

type agentKey struct{}

// WithAgent stashes the authenticated agent in the request context.
func WithAgent(ctx context.Context, agent *directory.Agent) context.Context {
	return context.WithValue(ctx, agentKey{}, agent)
}

// AgentFromContext returns the authenticated agent, if any.
func AgentFromContext(ctx context.Context) (*directory.Agent, bool) {
	agent, ok := ctx.Value(agentKey{}).(*directory.Agent)
	return agent, ok
}
