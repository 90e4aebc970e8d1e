package server

import (
	"net/http"
	"time"

	"github.com/linelight/backend/db"
	"github.com/linelight/backend/twitchapi"
)

// HandleCredentialToken stores or deletes the chat OAuth token. POST
// validates the token against the Twitch id service before persisting it
// (encrypted at rest); DELETE reports whether a token existed.
func (h *Handlers) HandleCredentialToken(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int    `json:"expires_in"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Token == "" {
			writeError(w, http.StatusBadRequest, "token is required")
			return
		}
		login, err := twitchapi.ValidateLogin(r.Context(), body.Token)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		expiry := time.Time{}
		if body.ExpiresIn > 0 {
			expiry = twitchapi.ComputeExpiry(body.ExpiresIn)
		}
		if err := db.UpsertCredential(r.Context(), h.db, db.CredentialChatToken, body.Token, expiry); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if body.RefreshToken != "" {
			if err := db.UpsertCredential(r.Context(), h.db, db.CredentialChatRefresh, body.RefreshToken, time.Time{}); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"login": login})
	case http.MethodDelete:
		removed, err := db.DeleteCredential(r.Context(), h.db, db.CredentialChatToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		// The refresh token is useless without its access token.
		if _, err := db.DeleteCredential(r.Context(), h.db, db.CredentialChatRefresh); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// HandleCredentialClient stores or deletes the Twitch application
// credentials used for token refresh.
func (h *Handlers) HandleCredentialClient(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var body struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.ClientID == "" {
			writeError(w, http.StatusBadRequest, "client_id is required")
			return
		}
		if err := db.UpsertCredential(r.Context(), h.db, db.CredentialClientID, body.ClientID, time.Time{}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if body.ClientSecret != "" {
			if err := db.UpsertCredential(r.Context(), h.db, db.CredentialClientSecret, body.ClientSecret, time.Time{}); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
	case http.MethodDelete:
		removedID, err := db.DeleteCredential(r.Context(), h.db, db.CredentialClientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		removedSecret, err := db.DeleteCredential(r.Context(), h.db, db.CredentialClientSecret)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": removedID || removedSecret})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
