package twitchapi

import (
	"context"
	"net/url"
	"strings"
	"testing"
)

func TestBuildAuthorizeURL(t *testing.T) {
	raw, err := BuildAuthorizeURL("cid", "http://localhost:8080/auth/twitch/callback", "chat:read,chat:edit", "st-1")
	if err != nil {
		t.Fatalf("BuildAuthorizeURL() error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "cid" || q.Get("state") != "st-1" {
		t.Errorf("query = %v", q)
	}
	if q.Get("scope") != "chat:read chat:edit" {
		t.Errorf("scope = %q, commas should become spaces", q.Get("scope"))
	}
}

func TestBuildAuthorizeURLMissingParams(t *testing.T) {
	if _, err := BuildAuthorizeURL("", "uri", "", ""); err == nil {
		t.Error("missing client id should fail")
	}
	if _, err := BuildAuthorizeURL("cid", "", "", ""); err == nil {
		t.Error("missing redirect uri should fail")
	}
}

func TestExchangeAuthCode(t *testing.T) {
	m := withMockID(t)
	m.MockTokenResponse("code-access", "code-refresh", 14400)

	res, err := ExchangeAuthCode(context.Background(), "cid", "secret", "authcode", "http://localhost/cb")
	if err != nil {
		t.Fatalf("ExchangeAuthCode() error: %v", err)
	}
	if res.AccessToken != "code-access" || res.RefreshToken != "code-refresh" || res.ExpiresIn != 14400 {
		t.Errorf("result = %+v", res)
	}
}

func TestExchangeAuthCodeMissingParams(t *testing.T) {
	_, err := ExchangeAuthCode(context.Background(), "cid", "secret", "", "uri")
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("error = %v", err)
	}
}
