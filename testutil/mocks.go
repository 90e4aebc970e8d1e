// Package testutil provides shared test helpers: a mock Twitch id service
// and a TEST_PG_DSN-gated database setup.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchID mocks the Twitch id service endpoints the backend talks to.
type MockTwitchID struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchID creates a new mock id server. Unhandled paths 404.
func NewMockTwitchID(t *testing.T) *MockTwitchID {
	t.Helper()
	m := &MockTwitchID{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockValidateResponse adds a handler for /oauth2/validate returning the
// given login and scopes for any presented token.
func (m *MockTwitchID) MockValidateResponse(login string, scopes []string) {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"client_id":  "mock-client-id",
			"login":      login,
			"user_id":    "12345",
			"scopes":     scopes,
			"expires_in": 3600,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockValidateUnauthorized makes /oauth2/validate reject every token.
func (m *MockTwitchID) MockValidateUnauthorized() {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
}

// MockTokenResponse adds a handler for /oauth2/token covering both the
// client credentials and refresh token grants.
func (m *MockTwitchID) MockTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
