package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
)

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Hub    *hub.Hub
	Server *Server
	Auth   *JWTAuth
	HTTP   *httptest.Server
}

// NewTestServerSetup creates a hub, an HTTP API server and an httptest
// server serving it
func NewTestServerSetup(t *testing.T, noAuth bool) *TestServerSetup {
	t.Helper()

	h, err := hub.New(hub.NewConfig("test-node"))
	if err != nil {
		t.Fatalf("Failed to create hub: %v", err)
	}

	server := NewServer(h, Config{
		SecretKey:    "test-secret-key",
		NoAuth:       noAuth,
		Keepalive:    50 * time.Millisecond,
		StreamBuffer: 16,
		Metrics:      true,
		Logger:       zerolog.Nop(),
	})

	httpServer := httptest.NewServer(server.Handler())

	setup := &TestServerSetup{
		Hub:    h,
		Server: server,
		Auth:   server.jwtAuth,
		HTTP:   httpServer,
	}
	t.Cleanup(setup.Close)
	return setup
}

// Close cleans up test resources
func (setup *TestServerSetup) Close() {
	setup.Server.handlers.close()
	setup.HTTP.Close()
	_ = setup.Hub.Close()
}

// GenerateTestToken creates a JWT token for testing
func (setup *TestServerSetup) GenerateTestToken(t *testing.T, clientID string, isAdmin bool) string {
	t.Helper()

	token, _, err := setup.Auth.GenerateToken(clientID, isAdmin)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}
	return token
}

// Do sends a request with an optional JSON body and bearer token
func (setup *TestServerSetup) Do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
	}

	req, err := http.NewRequest(method, setup.HTTP.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// DecodeJSON decodes a response body into v
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// SSEReader reads SSE frames from a streaming response
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader wraps a streaming response body
func NewSSEReader(resp *http.Response) *SSEReader {
	return &SSEReader{scanner: bufio.NewScanner(resp.Body)}
}

// NextData returns the payload of the next data line, skipping comments
func (r *SSEReader) NextData(t *testing.T) string {
	t.Helper()
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return data
		}
	}
	t.Fatalf("Stream ended before a data line: %v", r.scanner.Err())
	return ""
}

// NextComment returns the text of the next comment line
func (r *SSEReader) NextComment(t *testing.T) string {
	t.Helper()
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if comment, ok := strings.CutPrefix(line, ": "); ok {
			return comment
		}
	}
	t.Fatalf("Stream ended before a comment line: %v", r.scanner.Err())
	return ""
}
