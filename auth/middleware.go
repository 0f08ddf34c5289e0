package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Credential header pair accepted as an alternative to HTTP Basic auth.
const (
	HeaderClientID = "MCP_CLIENT_ID"
	HeaderAPIKey   = "API_KEY"
)

// Middleware authenticates every HTTP request with the resolver: either the
// MCP_CLIENT_ID/API_KEY header pair or Basic auth (username=client_id,
// password=client_secret). The resolved agent travels in the request context.
func Middleware(resolver *Resolver, logger *zap.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.Header.Get(HeaderClientID)
			clientSecret := r.Header.Get(HeaderAPIKey)
			if clientID == "" || clientSecret == "" {
				var ok bool
				clientID, clientSecret, ok = r.BasicAuth()
				if !ok {
					unauthorized(w, "missing authentication: provide MCP_CLIENT_ID/API_KEY headers or Basic authorization")
					return
				}
			}
			agent, err := resolver.Resolve(r.Context(), clientID, clientSecret)
			if err != nil {
				logger.Warn("authentication failed", zap.String("clientId", clientID))
				unauthorized(w, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAgent(r.Context(), agent)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
