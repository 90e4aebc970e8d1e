package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/linelight/backend/db"
	"github.com/linelight/backend/editor"
	"github.com/linelight/backend/engine"
)

// Handlers carries the dependencies shared by all HTTP handlers.
type Handlers struct {
	db       *sql.DB
	router   *engine.Router
	hub      *editor.Hub
	recorder *db.Recorder
	channels []string

	stateMu    sync.Mutex
	stateStore map[string]time.Time
}

// NewHandlers initializes handlers with their dependencies.
func NewHandlers(dbx *sql.DB, router *engine.Router, hub *editor.Hub, recorder *db.Recorder, channels []string) *Handlers {
	return &Handlers{
		db:         dbx,
		router:     router,
		hub:        hub,
		recorder:   recorder,
		channels:   channels,
		stateStore: make(map[string]time.Time),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
