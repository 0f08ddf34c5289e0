// Package auth validates agent credentials against the agent directory and
// exposes them to the session layer: an HTTP middleware for header-capable
// transports and environment variables for stdio.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/viant/mcp-bridge/directory"
)

// ErrUnauthorized is returned for both unknown client ids and secret
// mismatches so callers cannot enumerate registered agents.
var ErrUnauthorized = errors.New("invalid credentials")

// Resolver authenticates client credentials against the agent directory. It is
// a pure lookup plus constant-time comparison; no session state is touched.
type Resolver struct {
	store directory.Store
}

// NewResolver creates a resolver backed by the given directory store.
func NewResolver(store directory.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the agent matching the credentials, or ErrUnauthorized.
func (r *Resolver) Resolve(ctx context.Context, clientID, clientSecret string) (*directory.Agent, error) {
	agent, err := r.store.LookupAgent(ctx, clientID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !verifySecret(clientSecret, agent.SecretHash) {
		return nil, ErrUnauthorized
	}
	return agent, nil
}

// HashSecret returns the hex SHA-256 digest stored in the agent directory.
func HashSecret(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}

func verifySecret(secret, storedHash string) bool {
	candidate := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}
