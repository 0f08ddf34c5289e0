// Package sqlite implements the directory and usage store on an embedded
// SQLite database, used for development and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/viant/mcp-bridge/directory"
)

//go:embed schema.sql
var schemaSQL string

// Store reads providers and agents from, and writes usage counters to, a
// SQLite database file (or an in-memory database for tests).
type Store struct {
	db *sql.DB
}

// New opens the database at dsn and applies the schema. The dsn is anything
// the modernc sqlite driver accepts, e.g. a file path or
// "file:memdb?mode=memory&cache=shared".
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle, used by tests and provisioning tools.
func (s *Store) DB() *sql.DB { return s.db }

// ListProviders returns all provider rows.
func (s *Store) ListProviders(ctx context.Context) ([]*directory.ProviderSpec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, command, args, env, url, description FROM mcp_servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()
	var ret []*directory.ProviderSpec
	for rows.Next() {
		spec := &directory.ProviderSpec{}
		var command, args, env, aURL, description sql.NullString
		if err := rows.Scan(&spec.ID, &spec.Name, &spec.Type, &command, &args, &env, &aURL, &description); err != nil {
			return nil, err
		}
		spec.Command = command.String
		spec.URL = aURL.String
		spec.Description = description.String
		if args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &spec.Args); err != nil {
				return nil, fmt.Errorf("invalid args for provider %v: %w", spec.ID, err)
			}
		}
		if env.String != "" {
			if err := json.Unmarshal([]byte(env.String), &spec.Env); err != nil {
				return nil, fmt.Errorf("invalid env for provider %v: %w", spec.ID, err)
			}
		}
		ret = append(ret, spec)
	}
	return ret, rows.Err()
}

// LookupAgent returns the agent row matching clientID, with its allow-lists.
func (s *Store) LookupAgent(ctx context.Context, clientID string) (*directory.Agent, error) {
	agent := &directory.Agent{}
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, secret_hash, name FROM agents WHERE client_id = ?`, clientID).
		Scan(&agent.ID, &agent.ClientID, &agent.SecretHash, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup agent: %w", err)
	}
	agent.Name = name.String
	rows, err := s.db.QueryContext(ctx,
		`SELECT capability_id, kind FROM agent_capabilities WHERE agent_id = ?`, agent.ID)
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agent_mcp_usage (agent_id, mcp_server_id, connect_count, last_connected_at)
VALUES (?, ?, 1, ?)
ON CONFLICT(agent_id, mcp_server_id) DO UPDATE SET
    connect_count = connect_count + 1,
    last_connected_at = excluded.last_connected_at`,
		agentID, providerID, at.UTC())
	return err
}

// RecordDisconnect upserts the (agent, provider) row, incrementing disconnect_count.
func (s *Store) RecordDisconnect(ctx context.Context, agentID, providerID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agent_mcp_usage (agent_id, mcp_server_id, disconnect_count, last_disconnected_at)
VALUES (?, ?, 1, ?)
ON CONFLICT(agent_id, mcp_server_id) DO UPDATE SET
    disconnect_count = disconnect_count + 1,
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
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id, tool_id) DO UPDATE SET
    call_count = call_count + excluded.call_count,
    failure_count = failure_count + excluded.failure_count,
    last_called_at = excluded.last_called_at`
	case directory.KindResource:
		query = `
INSERT INTO agent_resource_usage (agent_id, resource_id, access_count, failure_count, first_accessed_at, last_accessed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id, resource_id) DO UPDATE SET
    access_count = access_count + excluded.access_count,
    failure_count = failure_count + excluded.failure_count,
    last_accessed_at = excluded.last_accessed_at`
	case directory.KindPrompt:
		query = `
INSERT INTO agent_prompt_usage (agent_id, prompt_id, use_count, failure_count, first_used_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id, prompt_id) DO UPDATE SET
    use_count = use_count + excluded.use_count,
    failure_count = failure_count + excluded.failure_count,
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
	_, err := s.db.ExecContext(ctx, query,
		invocation.AgentID, invocation.CapabilityID, succeeded, failed, at, at)
	return err
}

// AddProvider inserts or replaces a provider row, used for provisioning and tests.
func (s *Store) AddProvider(ctx context.Context, spec *directory.ProviderSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	args, err := json.Marshal(spec.Args)
	if err != nil {
		return err
	}
	env, err := json.Marshal(spec.Env)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO mcp_servers (id, name, type, command, args, env, url, description)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		spec.ID, spec.Name, spec.Type, spec.Command, string(args), string(env), spec.URL, spec.Description)
	return err
}

// AddAgent inserts or replaces an agent row together with its allow-lists.
func (s *Store) AddAgent(ctx context.Context, agent *directory.Agent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `
INSERT OR REPLACE INTO agents (id, client_id, secret_hash, name) VALUES (?, ?, ?, ?)`,
		agent.ID, agent.ClientID, agent.SecretHash, agent.Name); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM agent_capabilities WHERE agent_id = ?`, agent.ID); err != nil {
		return err
	}
	for _, kind := range []string{directory.KindTool, directory.KindResource, directory.KindPrompt} {
		for _, id := range agent.AllowedIDs(kind) {
			if _, err = tx.ExecContext(ctx, `
INSERT INTO agent_capabilities (agent_id, capability_id, kind) VALUES (?, ?, ?)`,
				agent.ID, id, kind); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
