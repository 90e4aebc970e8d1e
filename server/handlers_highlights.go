package server

import (
	"net/http"

	"github.com/linelight/backend/db"
	"github.com/linelight/backend/engine"
)

// snapshot asks the router for a consistent view of its state.
func (h *Handlers) snapshot(r *http.Request) (engine.Snapshot, error) {
	reply := make(chan engine.Snapshot, 1)
	if err := h.router.Dispatch(r.Context(), engine.CmdSnapshot{Reply: reply}); err != nil {
		return engine.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.Context().Done():
		return engine.Snapshot{}, r.Context().Err()
	}
}

// HandleStatus reports connection state and highlight totals.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	counts := make(map[string]int, len(snap.Documents))
	for _, doc := range snap.Documents {
		counts[doc.DisplayName] = len(doc.Highlights)
	}
	channels := h.channels
	if channels == nil {
		channels = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_state":                  snap.ConnState,
		"channels":                    channels,
		"always_remove_on_disconnect": snap.AlwaysRemove,
		"active_document":             snap.ActiveDocument,
		"total_highlights":            snap.TotalHighlights,
		"document_counts":             counts,
		"editor_connected":            h.hub.Connected(),
	})
}

// HandleHighlights returns the tree view: every document with highlights
// and its entries.
func (h *Handlers) HandleHighlights(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	docs := snap.Documents
	if docs == nil {
		docs = []engine.DocumentHighlights{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     snap.TotalHighlights,
		"documents": docs,
	})
}

// HandleHighlightsPicker returns the flat "<file>, <line>" entries used by
// the removal picker.
func (h *Handlers) HandleHighlightsPicker(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	entries := snap.PickerEntries
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleHighlightsHistory returns recent audit log rows, newest first.
func (h *Handlers) HandleHighlightsHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 100)
	if h.recorder == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []db.Event{}, "count": 0})
		return
	}
	events, err := h.recorder.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []db.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
