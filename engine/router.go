package engine

import (
	"context"
	"log/slog"

	"github.com/linelight/backend/highlight"
	"github.com/linelight/backend/telemetry"
)

// Editor is the editor-host collaborator: document identity, range
// resolution against current content, and display metadata.
type Editor interface {
	// ActiveDocument returns the frontmost document, if any.
	ActiveDocument() (docKey string, ok bool)
	// ResolveDocument maps a chat-supplied file name onto an open
	// document.
	ResolveDocument(name string) (docKey string, ok bool)
	// ResolveRange maps caller-facing line numbers onto what the
	// document's current content can render. Empty range means nothing
	// renderable.
	ResolveRange(docKey string, startLine, endLine int) highlight.Range
	// DisplayName returns the human-facing name used in picker entries.
	DisplayName(docKey string) string
}

// AuditLog records highlight activity for post-stream review. Implementations
// must not block the router for long; failures are logged, never propagated.
type AuditLog interface {
	Record(ctx context.Context, action, user, document string, startLine, endLine int, comment string)
}

// Router owns the event loop. Everything that touches the registry goes
// through Dispatch and is handled sequentially by Run.
type Router struct {
	events   chan Event
	registry *highlight.Registry
	syncer   *highlight.Syncer
	conn     *ConnStateMachine
	editor   Editor
	audit    AuditLog
}

// NewRouter wires the composition root together. audit may be nil.
func NewRouter(reg *highlight.Registry, syncer *highlight.Syncer, conn *ConnStateMachine, editor Editor, audit AuditLog) *Router {
	return &Router{
		events:   make(chan Event, 64),
		registry: reg,
		syncer:   syncer,
		conn:     conn,
		editor:   editor,
		audit:    audit,
	}
}

// Conn exposes the state machine for read-only status reporting.
func (r *Router) Conn() *ConnStateMachine { return r.conn }

// Dispatch queues an event for the router goroutine. It blocks only when
// the queue is full, and gives up when ctx is done.
func (r *Router) Dispatch(ctx context.Context, ev Event) error {
	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until ctx is cancelled. It must be the only consumer.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			done := telemetry.ObserveEvent(ev.eventName())
			r.handle(ctx, ev)
			done()
		}
	}
}

func (r *Router) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case ChatHighlight:
		r.addHighlight(ctx, e.User, e.StartLine, e.EndLine, e.File, e.Comment)
	case ChatUnhighlight:
		r.removeByLine(ctx, e.Line, e.File)
	case ChatBan:
		n := r.registry.RemoveByUser(e.User)
		if n > 0 {
			telemetry.AddHighlightsRemoved(n)
			r.record(ctx, "ban", e.User, "", 0, 0, "")
		}
		slog.Info("banned user purged", slog.String("user", e.User), slog.Int("removed", n))
	case ChatClear:
		r.unhighlightAll(ctx, "chat")
	case ChatConnecting:
		r.conn.HandleConnecting()
	case ChatConnected:
		r.conn.HandleConnected()
	case ChatDisconnected:
		r.conn.HandleDisconnected()
	case EditorActive:
		r.syncer.SetActiveDocument(e.DocKey)
	case EditorTextChanged:
		// Stored ranges are left alone; only the active document's
		// projection is re-run.
		if e.DocKey == r.syncer.ActiveDocument() {
			r.syncer.Refresh()
		}
	case EditorClosed:
		if e.Untitled {
			r.registry.Drop(e.DocKey)
		}
		if e.DocKey == r.syncer.ActiveDocument() {
			r.syncer.SetActiveDocument("")
		}
	case CmdHighlight:
		doc, ok := r.editor.ActiveDocument()
		if !ok {
			slog.Debug("highlight command without an active document")
			e.Reply <- HighlightResult{NoActiveDocument: true}
			return
		}
		e.Reply <- HighlightResult{Outcome: r.add(ctx, highlight.SelfUser, e.StartLine, e.EndLine, doc, e.Comment)}
	case CmdUnhighlightEntry:
		name, line, ok := highlight.ParsePickerEntry(e.Entry)
		if !ok {
			slog.Warn("malformed picker entry", slog.String("entry", e.Entry))
			e.Reply <- false
			return
		}
		e.Reply <- r.removeResolved(ctx, line, name)
	case CmdRemoveNode:
		removed := r.registry.RemoveByLine(e.Line, e.DocKey, false)
		if removed {
			telemetry.AddHighlightsRemoved(1)
			r.record(ctx, "remove", "", e.DocKey, e.Line, e.Line, "")
		}
		e.Reply <- removed
	case CmdUnhighlightAll:
		e.Reply <- r.unhighlightAll(ctx, "command")
	case CmdRefreshTree:
		r.syncer.Refresh()
	case CmdSnapshot:
		e.Reply <- r.snapshot()
	case CmdStartChat:
		e.Reply <- r.conn.Start(ctx)
	case CmdStopChat:
		e.Reply <- r.conn.Stop(ctx, e.Choice)
	case CmdToggleChat:
		e.Reply <- r.conn.Toggle(ctx, e.Choice)
	default:
		slog.Warn("unhandled event", slog.String("event", ev.eventName()))
	}
}

// addHighlight resolves the target document for a chat request and adds.
// A request that cannot resolve a document is a silent no-op: chat is not
// ordered relative to editor lifecycle, so the document may just have
// closed.
func (r *Router) addHighlight(ctx context.Context, user string, start, end int, file, comment string) {
	doc, ok := r.targetDocument(file)
	if !ok {
		slog.Debug("highlight dropped: no document", slog.String("user", user), slog.String("file", file))
		return
	}
	r.add(ctx, user, start, end, doc, comment)
}

func (r *Router) add(ctx context.Context, user string, start, end int, doc, comment string) highlight.Outcome {
	if end < start {
		start, end = end, start
	}
	outcome, _ := r.registry.Add(highlight.AddRequest{
		User:        user,
		StartLine:   start,
		EndLine:     end,
		DocumentKey: doc,
		DisplayName: r.editor.DisplayName(doc),
		Comment:     comment,
		Resolve: func(s, e int) highlight.Range {
			return r.editor.ResolveRange(doc, s, e)
		},
	})
	switch outcome {
	case highlight.Added:
		telemetry.AddHighlightsAdded(1)
		r.record(ctx, "add", user, doc, start, end, comment)
	case highlight.DuplicateIgnored:
		telemetry.IncDuplicatesIgnored()
		slog.Debug("duplicate highlight ignored", slog.String("user", user), slog.Int("line", start))
	case highlight.EmptyRangeRejected:
		telemetry.IncEmptyRangesRejected()
		slog.Debug("empty range rejected", slog.String("user", user), slog.Int("line", start))
	}
	return outcome
}

func (r *Router) removeByLine(ctx context.Context, line int, file string) {
	doc, ok := r.targetDocument(file)
	if !ok {
		slog.Debug("unhighlight dropped: no document", slog.String("file", file))
		return
	}
	if r.registry.RemoveByLine(line, doc, false) {
		telemetry.AddHighlightsRemoved(1)
		r.record(ctx, "remove", "", doc, line, line, "")
	}
}

// removeResolved handles picker-sourced removals where file is a display
// name rather than a document key.
func (r *Router) removeResolved(ctx context.Context, line int, name string) bool {
	doc, ok := r.editor.ResolveDocument(name)
	if !ok {
		slog.Warn("unhighlight target not open", slog.String("file", name))
		return false
	}
	removed := r.registry.RemoveByLine(line, doc, false)
	if removed {
		telemetry.AddHighlightsRemoved(1)
		r.record(ctx, "remove", "", doc, line, line, "")
	}
	return removed
}

func (r *Router) unhighlightAll(ctx context.Context, source string) int {
	n := r.registry.Total()
	r.registry.RemoveAll()
	if n > 0 {
		telemetry.AddHighlightsRemoved(n)
		r.record(ctx, "clear", "", "", 0, 0, source)
	}
	return n
}

func (r *Router) snapshot() Snapshot {
	snap := Snapshot{
		ConnState:       r.conn.State().String(),
		AlwaysRemove:    r.conn.AlwaysRemoveOnDisconnect(),
		ActiveDocument:  r.syncer.ActiveDocument(),
		TotalHighlights: r.registry.Total(),
		PickerEntries:   r.registry.PickerEntries(),
	}
	for _, doc := range r.registry.Documents() {
		hl, ok := r.registry.Find(doc)
		if !ok {
			continue
		}
		snap.Documents = append(snap.Documents, DocumentHighlights{
			DocumentKey: doc,
			DisplayName: hl.DisplayName(),
			Highlights:  hl.Highlights(),
		})
	}
	return snap
}

func (r *Router) targetDocument(file string) (string, bool) {
	if file != "" {
		return r.editor.ResolveDocument(file)
	}
	return r.editor.ActiveDocument()
}

func (r *Router) record(ctx context.Context, action, user, doc string, start, end int, comment string) {
	if r.audit == nil {
		return
	}
	r.audit.Record(ctx, action, user, doc, start, end, comment)
}
