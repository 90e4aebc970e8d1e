// Package engine binds inbound chat events and editor lifecycle events to
// the highlight registry. A single router goroutine consumes typed events
// from one channel, so no two registry mutations ever interleave; chat
// events and editor events arrive unordered relative to each other and a
// command for a document that just closed degrades to a logged no-op.
package engine

import "github.com/linelight/backend/highlight"

// Event is a routed input. Chat transport, editor hub and HTTP command
// handlers all produce events; only the router consumes them.
type Event interface{ eventName() string }

// ChatHighlight is a viewer's highlight command. File is optional; when
// empty the currently active document is targeted.
type ChatHighlight struct {
	User      string
	StartLine int
	EndLine   int
	File      string
	Comment   string
}

// ChatUnhighlight is a viewer's unhighlight command for one line.
type ChatUnhighlight struct {
	Line int
	File string
}

// ChatBan reports a user banned or timed out in chat; every highlight of
// theirs is removed across all documents.
type ChatBan struct{ User string }

// ChatClear is a moderator's request to remove every highlight.
type ChatClear struct{}

// ChatConnecting, ChatConnected and ChatDisconnected drive the connection
// state machine.
type (
	ChatConnecting   struct{}
	ChatConnected    struct{}
	ChatDisconnected struct{}
)

// EditorActive reports the newly active document; empty means no editor is
// frontmost.
type EditorActive struct{ DocKey string }

// EditorTextChanged reports an edit to a document. Stored ranges are never
// re-anchored; the event only re-triggers the projection for the active
// document.
type EditorTextChanged struct{ DocKey string }

// EditorClosed reports a closed document. Only untitled buffers lose their
// highlighter.
type EditorClosed struct {
	DocKey   string
	Untitled bool
}

// CmdHighlight is a locally issued highlight on the active document,
// attributed to the "self" user. Reply receives the outcome.
type CmdHighlight struct {
	StartLine int
	EndLine   int
	Comment   string
	Reply     chan HighlightResult
}

// HighlightResult reports what a CmdHighlight did. NoActiveDocument means
// nothing was frontmost to highlight and Outcome is meaningless.
type HighlightResult struct {
	Outcome          highlight.Outcome
	NoActiveDocument bool
}

// CmdUnhighlightEntry removes a highlight named by its picker entry string
// ("<file>, <line>"). Reply reports whether anything was removed.
type CmdUnhighlightEntry struct {
	Entry string
	Reply chan bool
}

// CmdRemoveNode removes the highlight at a line of a known document, as
// picked from the tree view.
type CmdRemoveNode struct {
	DocKey string
	Line   int
	Reply  chan bool
}

// CmdUnhighlightAll purges the registry. Reply receives the count removed.
type CmdUnhighlightAll struct{ Reply chan int }

// CmdRefreshTree re-runs the projection and re-notifies the tree view.
type CmdRefreshTree struct{}

// DocumentHighlights is one document's slice of the tree view snapshot.
type DocumentHighlights struct {
	DocumentKey string                `json:"document_key"`
	DisplayName string                `json:"display_name"`
	Highlights  []highlight.Highlight `json:"highlights"`
}

// Snapshot is a consistent read of router-owned state, served from the
// event loop so readers never race a mutation.
type Snapshot struct {
	ConnState       string               `json:"conn_state"`
	AlwaysRemove    bool                 `json:"always_remove_on_disconnect"`
	ActiveDocument  string               `json:"active_document,omitempty"`
	TotalHighlights int                  `json:"total_highlights"`
	Documents       []DocumentHighlights `json:"documents"`
	PickerEntries   []string             `json:"picker_entries"`
}

// CmdSnapshot requests a state snapshot for the read-only HTTP surface.
type CmdSnapshot struct{ Reply chan Snapshot }

// CmdStartChat, CmdStopChat and CmdToggleChat drive the connection state
// machine from the command surface. Choice optionally pre-answers the
// disconnect purge prompt.
type CmdStartChat struct{ Reply chan error }

type CmdStopChat struct {
	Choice *PurgeChoice
	Reply  chan error
}

type CmdToggleChat struct {
	Choice *PurgeChoice
	Reply  chan error
}

func (ChatHighlight) eventName() string       { return "chat_highlight" }
func (ChatUnhighlight) eventName() string     { return "chat_unhighlight" }
func (ChatBan) eventName() string             { return "chat_ban" }
func (ChatClear) eventName() string           { return "chat_clear" }
func (ChatConnecting) eventName() string      { return "chat_connecting" }
func (ChatConnected) eventName() string       { return "chat_connected" }
func (ChatDisconnected) eventName() string    { return "chat_disconnected" }
func (EditorActive) eventName() string        { return "editor_active" }
func (EditorTextChanged) eventName() string   { return "editor_text_changed" }
func (EditorClosed) eventName() string        { return "editor_closed" }
func (CmdHighlight) eventName() string        { return "cmd_highlight" }
func (CmdUnhighlightEntry) eventName() string { return "cmd_unhighlight_entry" }
func (CmdRemoveNode) eventName() string       { return "cmd_remove_node" }
func (CmdUnhighlightAll) eventName() string   { return "cmd_unhighlight_all" }
func (CmdRefreshTree) eventName() string      { return "cmd_refresh_tree" }
func (CmdSnapshot) eventName() string         { return "cmd_snapshot" }
func (CmdStartChat) eventName() string        { return "cmd_start_chat" }
func (CmdStopChat) eventName() string         { return "cmd_stop_chat" }
func (CmdToggleChat) eventName() string       { return "cmd_toggle_chat" }
