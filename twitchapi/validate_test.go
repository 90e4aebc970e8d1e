package twitchapi

import (
	"context"
	"strings"
	"testing"

	"github.com/linelight/backend/testutil"
)

func withMockID(t *testing.T) *testutil.MockTwitchID {
	t.Helper()
	m := testutil.NewMockTwitchID(t)
	old := idBaseURL
	idBaseURL = m.URL
	t.Cleanup(func() { idBaseURL = old })
	return m
}

func TestValidateToken(t *testing.T) {
	m := withMockID(t)
	m.MockValidateResponse("linelightbot", []string{"chat:read"})

	v, err := ValidateToken(context.Background(), "sometoken")
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if v.Login != "linelightbot" {
		t.Errorf("Login = %q", v.Login)
	}
	if len(v.Scopes) != 1 || v.Scopes[0] != "chat:read" {
		t.Errorf("Scopes = %v", v.Scopes)
	}
}

func TestValidateTokenUnauthorized(t *testing.T) {
	m := withMockID(t)
	m.MockValidateUnauthorized()

	_, err := ValidateToken(context.Background(), "expired")
	if err == nil || !strings.Contains(err.Error(), "invalid or expired") {
		t.Errorf("ValidateToken() error = %v", err)
	}
}

func TestValidateTokenEmpty(t *testing.T) {
	if _, err := ValidateToken(context.Background(), ""); err == nil {
		t.Error("empty token should fail")
	}
}

func TestValidateLoginStripsOAuthPrefix(t *testing.T) {
	m := withMockID(t)
	m.MockValidateResponse("linelightbot", []string{"chat:read", "chat:edit"})

	login, err := ValidateLogin(context.Background(), "oauth:sometoken")
	if err != nil {
		t.Fatalf("ValidateLogin() error: %v", err)
	}
	if login != "linelightbot" {
		t.Errorf("login = %q", login)
	}
}

func TestValidateLoginRequiresChatScope(t *testing.T) {
	m := withMockID(t)
	m.MockValidateResponse("linelightbot", []string{"user:read:email"})

	_, err := ValidateLogin(context.Background(), "sometoken")
	if err == nil || !strings.Contains(err.Error(), "chat:read") {
		t.Errorf("ValidateLogin() error = %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	m := withMockID(t)
	m.MockTokenResponse("new-access", "new-refresh", 3600)

	res, err := RefreshToken(context.Background(), "cid", "secret", "old-refresh")
	if err != nil {
		t.Fatalf("RefreshToken() error: %v", err)
	}
	if res.AccessToken != "new-access" || res.RefreshToken != "new-refresh" {
		t.Errorf("result = %+v", res)
	}
}

func TestRefreshTokenMissingParams(t *testing.T) {
	if _, err := RefreshToken(context.Background(), "", "secret", "rt"); err == nil {
		t.Error("missing client id should fail")
	}
}

func TestComputeExpiry(t *testing.T) {
	if ComputeExpiry(0).IsZero() {
		t.Error("zero seconds should still produce a future expiry")
	}
}
