// Package editor is the WebSocket bridge to the editor plugin. One plugin
// session at a time reports document lifecycle (open, active, text changed,
// closed) and receives decoration frames, prompts and reveal requests. The
// hub is the router's view of the editor: it resolves chat-supplied file
// names and line ranges against the plugin's last reported document state.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/linelight/backend/engine"
	"github.com/linelight/backend/highlight"
	"github.com/linelight/backend/telemetry"
)

// Style carries the decoration appearance pushed with every frame, so the
// plugin needs no configuration of its own.
type Style struct {
	Color     string `json:"color"`
	Border    string `json:"border"`
	FontColor string `json:"font_color"`
}

// frame is the wire envelope in both directions.
type frame struct {
	Type string `json:"type"`

	// document / active / text_changed / closed
	DocKey      string `json:"doc_key,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Untitled    bool   `json:"untitled,omitempty"`
	LineCount   int    `json:"line_count,omitempty"`
	BlankLines  []int  `json:"blank_lines,omitempty"`

	// decorations
	Style       *Style                 `json:"style,omitempty"`
	Decorations []highlight.Decoration `json:"decorations,omitempty"`

	// prompt / prompt_response
	PromptID string `json:"prompt_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Value    string `json:"value,omitempty"`

	// reveal
	Line int `json:"line,omitempty"`
}

type document struct {
	displayName string
	untitled    bool
	lineCount   int
	blank       map[int]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks the plugin session and its reported documents. It implements
// the router's Editor, the registry's Renderer and the state machine's
// Prompter.
type Hub struct {
	style    Style
	dispatch func(engine.Event)

	mu      sync.Mutex
	conn    *websocket.Conn
	docs    map[string]*document
	active  string
	pending map[string]chan string
}

// NewHub builds a hub. dispatch hands lifecycle events to the router.
func NewHub(style Style, dispatch func(engine.Event)) *Hub {
	return &Hub{
		style:    style,
		dispatch: dispatch,
		docs:     make(map[string]*document),
		pending:  make(map[string]chan string),
	}
}

// ServeHTTP upgrades the plugin connection and runs its read loop. A new
// connection replaces any existing session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("editor websocket upgrade failed", slog.Any("err", err))
		return
	}
	h.attach(conn)
	telemetry.IncEditorSessions()
	slog.Info("editor session connected", slog.String("remote", r.RemoteAddr))

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("editor session read error", slog.Any("err", err))
			}
			break
		}
		h.handleFrame(f)
	}

	telemetry.DecEditorSessions()
	h.detach(conn)
	slog.Info("editor session disconnected")
}

// attach replaces any existing session. Prompts pending against the old
// session fail here, not in the old session's detach, which no longer owns
// the connection by the time its read loop unwinds.
func (h *Hub) attach(conn *websocket.Conn) {
	h.mu.Lock()
	old := h.conn
	h.conn = conn
	h.docs = make(map[string]*document)
	h.active = ""
	for id, ch := range h.pending {
		close(ch)
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// detach clears the session if conn is still current and fails every
// pending prompt so the router never waits on a gone editor.
func (h *Hub) detach(conn *websocket.Conn) {
	conn.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != conn {
		return
	}
	h.conn = nil
	for id, ch := range h.pending {
		close(ch)
		delete(h.pending, id)
	}
}

func (h *Hub) handleFrame(f frame) {
	switch f.Type {
	case "hello":
		// State replay: the plugin reports documents next; the tree and
		// decorations follow from the refresh.
		h.dispatch(engine.CmdRefreshTree{})
	case "document", "text_changed":
		h.mu.Lock()
		blank := make(map[int]bool, len(f.BlankLines))
		for _, n := range f.BlankLines {
			blank[n] = true
		}
		doc, ok := h.docs[f.DocKey]
		if !ok {
			doc = &document{}
			h.docs[f.DocKey] = doc
		}
		if f.DisplayName != "" {
			doc.displayName = f.DisplayName
		}
		doc.untitled = doc.untitled || f.Untitled
		doc.lineCount = f.LineCount
		doc.blank = blank
		h.mu.Unlock()
		if f.Type == "text_changed" {
			h.dispatch(engine.EditorTextChanged{DocKey: f.DocKey})
		}
	case "active":
		h.mu.Lock()
		h.active = f.DocKey
		h.mu.Unlock()
		h.dispatch(engine.EditorActive{DocKey: f.DocKey})
	case "closed":
		h.mu.Lock()
		untitled := false
		if doc, ok := h.docs[f.DocKey]; ok {
			untitled = doc.untitled
			delete(h.docs, f.DocKey)
		}
		if h.active == f.DocKey {
			h.active = ""
		}
		h.mu.Unlock()
		h.dispatch(engine.EditorClosed{DocKey: f.DocKey, Untitled: untitled})
	case "prompt_response":
		h.mu.Lock()
		ch, ok := h.pending[f.PromptID]
		if ok {
			delete(h.pending, f.PromptID)
		}
		h.mu.Unlock()
		if ok {
			ch <- f.Value
			close(ch)
		}
	default:
		slog.Warn("unknown editor frame", slog.String("type", f.Type))
	}
}

func (h *Hub) send(f frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("no editor session")
	}
	return h.conn.WriteJSON(f)
}

// Apply pushes the full decoration set for a document. Errors are logged;
// a gone session just means nothing renders until the plugin reconnects.
func (h *Hub) Apply(documentKey string, decorations []highlight.Decoration) {
	style := h.style
	err := h.send(frame{
		Type:        "decorations",
		DocKey:      documentKey,
		Style:       &style,
		Decorations: decorations,
	})
	if err != nil {
		slog.Debug("decoration push skipped", slog.Any("err", err))
	}
}

// Reveal asks the plugin to scroll a document to a line.
func (h *Hub) Reveal(docKey string, line int) error {
	return h.send(frame{Type: "reveal", DocKey: docKey, Line: line})
}

// Connected reports whether a plugin session is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// ActiveDocument returns the plugin's frontmost document.
func (h *Hub) ActiveDocument() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, h.active != ""
}

// ResolveDocument maps a display name onto an open document key.
func (h *Hub) ResolveDocument(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, doc := range h.docs {
		if doc.displayName == name {
			return key, true
		}
	}
	return "", false
}

// ResolveRange clamps the requested lines to the document and trims blank
// edges. An empty result means nothing renderable was addressed.
func (h *Hub) ResolveRange(docKey string, startLine, endLine int) highlight.Range {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, ok := h.docs[docKey]
	if !ok {
		return highlight.Range{}
	}
	if startLine < 1 {
		startLine = 1
	}
	if endLine > doc.lineCount {
		endLine = doc.lineCount
	}
	for startLine <= endLine && doc.blank[startLine] {
		startLine++
	}
	for endLine >= startLine && doc.blank[endLine] {
		endLine--
	}
	if startLine > endLine {
		return highlight.Range{}
	}
	return highlight.Range{StartLine: startLine, EndLine: endLine}
}

// DisplayName returns the reported name, falling back to the key.
func (h *Hub) DisplayName(docKey string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if doc, ok := h.docs[docKey]; ok && doc.displayName != "" {
		return doc.displayName
	}
	return docKey
}

// Token prompts the plugin for a chat credential. A dismissed prompt or a
// missing session reports ok=false with no error.
func (h *Hub) Token(ctx context.Context) (string, bool, error) {
	v, answered, err := h.prompt(ctx, "token")
	if err != nil || !answered || v == "" {
		return "", false, err
	}
	return v, true, nil
}

// PurgePrompt presents the disconnect choice. Dismissal, timeout and a
// missing session all degrade to ChoiceNone.
func (h *Hub) PurgePrompt(ctx context.Context) (engine.PurgeChoice, error) {
	v, answered, err := h.prompt(ctx, "purge")
	if err != nil || !answered {
		return engine.ChoiceNone, err
	}
	choice, ok := engine.ParsePurgeChoice(v)
	if !ok {
		return engine.ChoiceNone, nil
	}
	return choice, nil
}

func (h *Hub) prompt(ctx context.Context, kind string) (value string, answered bool, err error) {
	id := uuid.NewString()
	ch := make(chan string, 1)

	h.mu.Lock()
	if h.conn == nil {
		h.mu.Unlock()
		return "", false, nil
	}
	h.pending[id] = ch
	err = h.conn.WriteJSON(frame{Type: "prompt", PromptID: id, Kind: kind})
	h.mu.Unlock()
	if err != nil {
		h.forget(id)
		return "", false, fmt.Errorf("send %s prompt: %w", kind, err)
	}

	select {
	case v, ok := <-ch:
		if !ok {
			return "", false, nil
		}
		return v, true, nil
	case <-ctx.Done():
		h.forget(id)
		return "", false, nil
	}
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}
