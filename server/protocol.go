package server

import (
	"github.com/viant/mcp-protocol/schema"
	"net/http"
)

const protocolVersionHeader = "MCP-Protocol-Version"

// protocolVersionMiddleware rejects requests carrying an MCP-Protocol-Version
// header the bridge does not speak, and stamps every response with the version
// it serves. An absent header means the client accepts the default.
func protocolVersionMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := r.Header.Get(protocolVersionHeader)
			if version != "" && version != schema.LatestProtocolVersion {
				http.Error(w, "invalid "+protocolVersionHeader, http.StatusBadRequest)
				return
			}
			w.Header().Set(protocolVersionHeader, schema.LatestProtocolVersion)
			next.ServeHTTP(w, r)
		})
	}
}
