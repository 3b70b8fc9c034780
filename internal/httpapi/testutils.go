package httpapi

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	internalstore "github.com/rmacdonaldsmith/eventstore-go/internal/eventstore"
)

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Store  *internalstore.InMemoryEventStore
	Server *Server
	Auth   *JWTAuth
}

// NewTestServerSetup creates a common test setup with an empty store and HTTP server
func NewTestServerSetup(t *testing.T) *TestServerSetup {
	t.Helper()
	return NewTestServerSetupWithConfig(t, internalstore.NewConfig(), Config{})
}

// NewTestServerSetupWithConfig creates a test setup from explicit store and server configs
func NewTestServerSetupWithConfig(t *testing.T, storeConfig *internalstore.Config, serverConfig Config) *TestServerSetup {
	t.Helper()

	store, err := internalstore.NewInMemoryEventStoreWithConfig(storeConfig)
	if err != nil {
		t.Fatalf("Failed to create event store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if serverConfig.SecretKey == "" {
		serverConfig.SecretKey = "test-secret-key"
	}

	server := NewServer(store, serverConfig)
	if server == nil {
		t.Fatal("Expected server to be created, got nil")
	}

	return &TestServerSetup{
		Store:  store,
		Server: server,
		Auth:   server.jwtAuth,
	}
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

// Do sends a request through the routed handler and returns the recorded response.
// An empty token sends no Authorization header; a non-empty body is sent as JSON.
func (setup *TestServerSetup) Do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	setup.Server.Handler().ServeHTTP(rec, req)
	return rec
}
