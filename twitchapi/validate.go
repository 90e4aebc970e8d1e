// Package twitchapi talks to the Twitch id service: token validation,
// refresh, and app access tokens for Helix calls.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// idBaseURL is swapped out in tests.
var idBaseURL = "https://id.twitch.tv"

// Validation is the id service's description of a user OAuth token.
type Validation struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// ValidateToken checks a user OAuth token and returns its metadata. The
// token is passed bare, without the "oauth:" prefix IRC uses.
func ValidateToken(ctx context.Context, token string) (*Validation, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idBaseURL+"/oauth2/validate", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("twitch token is invalid or expired")
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, err
	}
	if v.Login == "" {
		return nil, errors.New("twitch validate response missing login")
	}
	return &v, nil
}

// ValidateLogin derives the bot login from a chat token. It also checks
// that the token carries the chat:read scope the IRC connection needs.
func ValidateLogin(ctx context.Context, token string) (string, error) {
	v, err := ValidateToken(ctx, strings.TrimPrefix(token, "oauth:"))
	if err != nil {
		return "", err
	}
	if !hasScope(v.Scopes, "chat:read") {
		return "", fmt.Errorf("token for %s lacks chat:read scope", v.Login)
	}
	return v.Login, nil
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
