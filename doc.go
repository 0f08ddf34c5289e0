// Package bridge assembles a multi-tenant MCP gateway: it connects to the
// upstream MCP servers registered in a shared directory, aggregates their
// tools, resources and prompts into one capability registry, and serves them
// back to authenticated agents over stdio, SSE or streamable HTTP with
// per-agent capability filtering and usage accounting.
//
// The package glues the lower layers together: directory (provider and agent
// records), upstream (provider connectors), registry (aggregated capability
// view), session/auth (per-connection identity and filtering), router
// (dispatch with timeout and error translation), usage (counters and
// persistence) and server (the MCP-facing endpoint).
package bridge
