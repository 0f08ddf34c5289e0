// Package postgres implements the directory and usage store on PostgreSQL,
// used in production where the registry service owns the schema. The bridge
// only reads directory tables and upserts usage counters.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viant/mcp-bridge/directory"
)

// Store serves directory reads and usage writes from a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database described by dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// ListProviders returns all provider rows.
func (s *Store) ListProviders(ctx context.Context) ([]*directory.ProviderSpec, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, type, command, args, env, url, description
FROM mcp_servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()
	var ret []*directory.ProviderSpec
	for rows.Next() {
		spec := &directory.ProviderSpec{}
		var command, aURL, description *string
		if err := rows.Scan(&spec.ID, &spec.Name, &spec.Type, &command, &spec.Args, &spec.Env, &aURL, &description); err != nil {
			return nil, err
		}
		if command != nil {
			spec.Command = *command
		}
		if aURL != nil {
			spec.URL = *aURL
		}
		if description != nil {
			spec.Description = *description
		}
		ret = append(ret, spec)
	}
	return ret, rows.Err()
}

// LookupAgent returns the agent row matching clientID, with its allow-lists.
func (s *Store) LookupAgent(ctx context.Context, clientID string) (*directory.Agent, error) {
	agent := &directory.Agent{}
	var name *string
	err := s.pool.QueryRow(ctx, `
SELECT id, client_id, secret_hash, name FROM agents WHERE client_id = $1`, clientID).
		Scan(&agent.ID, &agent.ClientID, &agent.SecretHash, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup agent: %w", err)
	}
	if name != nil {
		agent.Name = *name
	}
	rows, err := s.pool.Query(ctx, `
SELECT capability_id, kind FROM agent_capabilities WHERE agent_id = $1`, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allow-lists: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var capabilityID, kind string
		if err := rows.Scan(&capabilityID, &kind); err != nil {
			return nil, err
		}
		switch kind {
		case directory.KindTool:
			agent.AllowedToolIDs = append(agent.AllowedToolIDs, capabilityID)
		case directory.KindResource:
			agent.AllowedResourceIDs = append(agent.AllowedResourceIDs, capabilityID)
		case directory.KindPrompt:
			agent.AllowedPromptIDs = append(agent.AllowedPromptIDs, capabilityID)
		}
	}
	return agent, rows.Err()
}

// RecordConnect upserts the (agent, provider) row, incrementing connect_count.
func (s *Store) RecordConnect(ctx context.Context, agentID, providerID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO agent_mcp_usage (agent_id, mcp_server_id, connect_count, last_connected_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (agent_id, mcp_server_id) DO UPDATE SET
    connect_count = agent_mcp_usage.connect_count + 1,
    last_connected_at = excluded.last_connected_at`,
		agentID, providerID, at.UTC())
	return err
}

// RecordDisconnect upserts the (agent, provider) row, incrementing disconnect_count.
func (s *Store) RecordDisconnect(ctx context.Context, agentID, providerID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO agent_mcp_usage (agent_id, mcp_server_id, disconnect_count, last_disconnected_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (agent_id, mcp_server_id) DO UPDATE SET
    disconnect_count = agent_mcp_usage.disconnect_count + 1,
    last_disconnected_at = excluded.last_disconnected_at`,
		agentID, providerID, at.UTC())
	return err
}

// RecordInvocation upserts the per-capability usage row for the invocation kind.
func (s *Store) RecordInvocation(ctx context.Context, invocation *directory.Invocation) error {
	var query string
	switch invocation.Kind {
	case directory.KindTool:
		query = `
INSERT INTO agent_tool_usage (agent_id, tool_id, call_count, failure_count, first_called_at, last_called_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (agent_id, tool_id) DO UPDATE SET
    call_count = agent_tool_usage.call_count + excluded.call_count,
    failure_count = agent_tool_usage.failure_count + excluded.failure_count,
    last_called_at = excluded.last_called_at`
	case directory.KindResource:
		query = `
INSERT INTO agent_resource_usage (agent_id, resource_id, access_count, failure_count, first_accessed_at, last_accessed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (agent_id, resource_id) DO UPDATE SET
    access_count = agent_resource_usage.access_count + excluded.access_count,
    failure_count = agent_resource_usage.failure_count + excluded.failure_count,
    last_accessed_at = excluded.last_accessed_at`
	case directory.KindPrompt:
		query = `
INSERT INTO agent_prompt_usage (agent_id, prompt_id, use_count, failure_count, first_used_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (agent_id, prompt_id) DO UPDATE SET
    use_count = agent_prompt_usage.use_count + excluded.use_count,
    failure_count = agent_prompt_usage.failure_count + excluded.failure_count,
    last_used_at = excluded.last_used_at`
	default:
		return fmt.Errorf("unsupported invocation kind: %v", invocation.Kind)
	}
	// a failed dispatch counts only against failure_count, never usage
	succeeded, failed := 1, 0
	if invocation.Failed {
		succeeded, failed = 0, 1
	}
	at := invocation.At.UTC()
	_, err := s.pool.Exec(ctx, query,
		invocation.AgentID, invocation.CapabilityID, succeeded, failed, at, at)
	return err
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
