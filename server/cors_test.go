package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/mcp-bridge/auth"
)

func TestNewCors(t *testing.T) {
	cors := NewCors([]string{"https://studio.example.com"})
	assert.Equal(t, []string{"https://studio.example.com"}, cors.AllowOrigins)
	assert.True(t, *cors.AllowCredentials)

	open := NewCors(nil)
	assert.Equal(t, []string{"*"}, open.AllowOrigins)
}

func TestCorsMiddleware(t *testing.T) {
	cors := NewCors([]string{"https://studio.example.com"})
	handler := &corsHandler{Cors: cors}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := chainMiddleware(next, handler.Middleware, originValidationMiddleware(cors.AllowOrigins))

	testCases := []struct {
		description string
		origin      string
		expectCode  int
		expectAllow string
	}{
		{
			description: "allowed origin echoed back",
			origin:      "https://studio.example.com",
			expectCode:  http.StatusOK,
			expectAllow: "https://studio.example.com",
		},
		{
			description: "unknown origin rejected",
			origin:      "https://evil.example.com",
			expectCode:  http.StatusForbidden,
		},
		{
			description: "non-browser request without origin passes",
			origin:      "",
			expectCode:  http.StatusOK,
		},
	}
	for _, testCase := range testCases {
		request := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		if testCase.origin != "" {
			request.Header.Set("Origin", testCase.origin)
		}
		recorder := httptest.NewRecorder()
		chain.ServeHTTP(recorder, request)
		assert.Equal(t, testCase.expectCode, recorder.Code, testCase.description)
		assert.Equal(t, testCase.expectAllow, recorder.Header().Get(AllowOriginHeader), testCase.description)
	}
}

func TestCorsAllowedHeadersIncludeCredentials(t *testing.T) {
	handler := &corsHandler{Cors: NewCors(nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	request := httptest.NewRequest(http.MethodOptions, "/sse", nil)
	request.Header.Set("Origin", "https://studio.example.com")
	recorder := httptest.NewRecorder()
	handler.Middleware(next).ServeHTTP(recorder, request)

	allowed := recorder.Header().Get(AllowHeadersHeader)
	assert.Contains(t, allowed, auth.HeaderClientID)
	assert.Contains(t, allowed, auth.HeaderAPIKey)
}
