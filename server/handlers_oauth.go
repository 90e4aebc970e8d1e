package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"time"

	"github.com/linelight/backend/db"
	"github.com/linelight/backend/twitchapi"
)

// addOAuthState records a pending state value and prunes expired ones.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	now := time.Now()
	for s, exp := range h.stateStore {
		if now.After(exp) {
			delete(h.stateStore, s)
		}
	}
	h.stateStore[state] = expiry
}

// takeOAuthState consumes a state value, reporting whether it was pending
// and unexpired.
func (h *Handlers) takeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}

// HandleTwitchOAuthStart initiates the Twitch OAuth code flow by
// redirecting to Twitch. An alternative to pasting a token into the
// editor prompt or the credential endpoint.
func (h *Handlers) HandleTwitchOAuthStart(w http.ResponseWriter, r *http.Request) {
	clientID := os.Getenv("TWITCH_CLIENT_ID")
	redirectURI := os.Getenv("TWITCH_REDIRECT_URI")
	scopes := os.Getenv("TWITCH_SCOPES")
	if scopes == "" {
		scopes = "chat:read"
	}
	if clientID == "" || redirectURI == "" {
		writeError(w, http.StatusBadRequest, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_REDIRECT_URI)")
		return
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		writeError(w, http.StatusInternalServerError, "state gen error")
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(10*time.Minute))
	authURL, err := twitchapi.BuildAuthorizeURL(clientID, redirectURI, scopes, st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleTwitchOAuthCallback exchanges the authorization code and stores
// the resulting chat token pair.
func (h *Handlers) HandleTwitchOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		writeError(w, http.StatusBadRequest, "missing code/state")
		return
	}
	if !h.takeOAuthState(st) {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	ctx := r.Context()
	res, err := twitchapi.ExchangeAuthCode(ctx,
		os.Getenv("TWITCH_CLIENT_ID"), os.Getenv("TWITCH_CLIENT_SECRET"),
		code, os.Getenv("TWITCH_REDIRECT_URI"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := db.UpsertCredential(ctx, h.db, db.CredentialChatToken, res.AccessToken, twitchapi.ComputeExpiry(res.ExpiresIn)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.RefreshToken != "" {
		if err := db.UpsertCredential(ctx, h.db, db.CredentialChatRefresh, res.RefreshToken, time.Time{}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok", "scopes": res.Scope, "expires_in": res.ExpiresIn,
	})
}
