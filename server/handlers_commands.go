package server

import (
	"net/http"

	"github.com/linelight/backend/engine"
	"github.com/linelight/backend/highlight"
)

// dispatch queues an event and is used by handlers with no reply channel.
func (h *Handlers) dispatch(r *http.Request, ev engine.Event) error {
	return h.router.Dispatch(r.Context(), ev)
}

// HandleCmdHighlight adds a highlight on the active document, attributed
// to the streamer.
func (h *Handlers) HandleCmdHighlight(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
		Comment   string `json:"comment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.StartLine <= 0 {
		writeError(w, http.StatusBadRequest, "start_line must be positive")
		return
	}
	if body.EndLine == 0 {
		body.EndLine = body.StartLine
	}
	reply := make(chan engine.HighlightResult, 1)
	if err := h.dispatch(r, engine.CmdHighlight{
		StartLine: body.StartLine,
		EndLine:   body.EndLine,
		Comment:   body.Comment,
		Reply:     reply,
	}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	select {
	case res := <-reply:
		if res.NoActiveDocument {
			writeError(w, http.StatusConflict, "no active document")
			return
		}
		status := http.StatusOK
		if res.Outcome == highlight.EmptyRangeRejected {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"outcome": res.Outcome.String()})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, r.Context().Err().Error())
	}
}

// HandleCmdUnhighlight removes one highlight, addressed either by picker
// entry or by document key and line.
func (h *Handlers) HandleCmdUnhighlight(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Entry    string `json:"entry"`
		Document string `json:"document"`
		Line     int    `json:"line"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	reply := make(chan bool, 1)
	var ev engine.Event
	switch {
	case body.Entry != "":
		ev = engine.CmdUnhighlightEntry{Entry: body.Entry, Reply: reply}
	case body.Document != "" && body.Line > 0:
		ev = engine.CmdRemoveNode{DocKey: body.Document, Line: body.Line, Reply: reply}
	default:
		writeError(w, http.StatusBadRequest, "need entry or document+line")
		return
	}
	if err := h.dispatch(r, ev); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	select {
	case removed := <-reply:
		if !removed {
			writeError(w, http.StatusNotFound, "no matching highlight")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, r.Context().Err().Error())
	}
}

// HandleCmdUnhighlightAll clears every highlight.
func (h *Handlers) HandleCmdUnhighlightAll(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	reply := make(chan int, 1)
	if err := h.dispatch(r, engine.CmdUnhighlightAll{Reply: reply}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	select {
	case n := <-reply:
		writeJSON(w, http.StatusOK, map[string]int{"removed": n})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, r.Context().Err().Error())
	}
}

// HandleCmdRefreshTree re-runs the projection and tree notification.
func (h *Handlers) HandleCmdRefreshTree(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.dispatch(r, engine.CmdRefreshTree{}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HandleCmdGoto asks the editor plugin to reveal a highlighted line.
func (h *Handlers) HandleCmdGoto(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Entry    string `json:"entry"`
		Document string `json:"document"`
		Line     int    `json:"line"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	docKey := body.Document
	line := body.Line
	if body.Entry != "" {
		name, entryLine, ok := highlight.ParsePickerEntry(body.Entry)
		if !ok {
			writeError(w, http.StatusBadRequest, "malformed picker entry")
			return
		}
		key, found := h.hub.ResolveDocument(name)
		if !found {
			writeError(w, http.StatusNotFound, "document not open")
			return
		}
		docKey = key
		line = entryLine
	}
	if docKey == "" || line <= 0 {
		writeError(w, http.StatusBadRequest, "need entry or document+line")
		return
	}
	if err := h.hub.Reveal(docKey, line); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revealed"})
}

// HandleChatStart, HandleChatStop and HandleChatToggle drive the chat
// connection. Stop and toggle accept an optional purge choice
// ("keep"/"remove"/"always") that pre-answers the disconnect prompt.
func (h *Handlers) HandleChatStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	reply := make(chan error, 1)
	if err := h.dispatch(r, engine.CmdStartChat{Reply: reply}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.replyConn(w, r, reply)
}

func (h *Handlers) HandleChatStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	choice, ok := parsePurgeChoiceQuery(w, r)
	if !ok {
		return
	}
	reply := make(chan error, 1)
	if err := h.dispatch(r, engine.CmdStopChat{Choice: choice, Reply: reply}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.replyConn(w, r, reply)
}

func (h *Handlers) HandleChatToggle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	choice, ok := parsePurgeChoiceQuery(w, r)
	if !ok {
		return
	}
	reply := make(chan error, 1)
	if err := h.dispatch(r, engine.CmdToggleChat{Choice: choice, Reply: reply}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.replyConn(w, r, reply)
}

func (h *Handlers) replyConn(w http.ResponseWriter, r *http.Request, reply chan error) {
	select {
	case err := <-reply:
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, r.Context().Err().Error())
	}
}

func parsePurgeChoiceQuery(w http.ResponseWriter, r *http.Request) (*engine.PurgeChoice, bool) {
	v := r.URL.Query().Get("choice")
	if v == "" {
		return nil, true
	}
	c, ok := engine.ParsePurgeChoice(v)
	if !ok {
		writeError(w, http.StatusBadRequest, "choice must be keep, remove or always")
		return nil, false
	}
	return &c, true
}
