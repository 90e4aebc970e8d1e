package editor

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linelight/backend/engine"
	"github.com/linelight/backend/highlight"
)

type eventSink struct {
	mu     sync.Mutex
	events []engine.Event
}

func (s *eventSink) dispatch(ev engine.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) wait(t *testing.T, n int) []engine.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.events) >= n {
			out := append([]engine.Event(nil), s.events...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", n)
	return nil
}

func newTestHub(t *testing.T) (*Hub, *websocket.Conn, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	hub := NewHub(Style{Color: "green", Border: "2px solid white", FontColor: "white"}, sink.dispatch)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, conn, sink
}

func sendFrame(t *testing.T, conn *websocket.Conn, f frame) {
	t.Helper()
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// waitAttached sends a marker document and polls until the hub has
// processed it, so tests don't race the server-side session setup.
func waitAttached(t *testing.T, hub *Hub, conn *websocket.Conn) {
	t.Helper()
	sendFrame(t, conn, frame{Type: "document", DocKey: "attach-marker", DisplayName: "attach-marker", LineCount: 1})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := hub.ResolveDocument("attach-marker"); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("hub never attached the session")
}

func TestDocumentLifecycleFrames(t *testing.T) {
	hub, conn, sink := newTestHub(t)

	sendFrame(t, conn, frame{Type: "document", DocKey: "file:///w/a.ts", DisplayName: "a.ts", LineCount: 20, BlankLines: []int{5}})
	sendFrame(t, conn, frame{Type: "active", DocKey: "file:///w/a.ts"})
	events := sink.wait(t, 1)
	if ev, ok := events[len(events)-1].(engine.EditorActive); !ok || ev.DocKey != "file:///w/a.ts" {
		t.Fatalf("last event = %#v", events[len(events)-1])
	}

	if doc, ok := hub.ActiveDocument(); !ok || doc != "file:///w/a.ts" {
		t.Errorf("ActiveDocument = %q, %v", doc, ok)
	}
	if key, ok := hub.ResolveDocument("a.ts"); !ok || key != "file:///w/a.ts" {
		t.Errorf("ResolveDocument = %q, %v", key, ok)
	}
	if _, ok := hub.ResolveDocument("ghost.ts"); ok {
		t.Error("unknown display name resolved")
	}
	if name := hub.DisplayName("file:///w/a.ts"); name != "a.ts" {
		t.Errorf("DisplayName = %q", name)
	}
}

func TestResolveRange(t *testing.T) {
	hub, conn, sink := newTestHub(t)
	sendFrame(t, conn, frame{Type: "document", DocKey: "d", DisplayName: "d.go", LineCount: 10, BlankLines: []int{1, 2, 9, 10}})
	sendFrame(t, conn, frame{Type: "active", DocKey: "d"})
	sink.wait(t, 1)

	cases := []struct {
		name       string
		start, end int
		want       highlight.Range
	}{
		{"plain", 3, 5, highlight.Range{StartLine: 3, EndLine: 5}},
		{"clamped to line count", 8, 40, highlight.Range{StartLine: 8, EndLine: 8}},
		{"blank edges trimmed", 1, 4, highlight.Range{StartLine: 3, EndLine: 4}},
		{"all blank", 9, 10, highlight.Range{}},
		{"past end of file", 11, 12, highlight.Range{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hub.ResolveRange("d", tc.start, tc.end); got != tc.want {
				t.Errorf("ResolveRange(%d,%d) = %+v, want %+v", tc.start, tc.end, got, tc.want)
			}
		})
	}
	if got := hub.ResolveRange("unknown", 1, 1); !got.IsEmpty() {
		t.Errorf("unknown document resolved %+v", got)
	}
}

func TestTextChangedAndClosedDispatch(t *testing.T) {
	_, conn, sink := newTestHub(t)
	sendFrame(t, conn, frame{Type: "document", DocKey: "u", Untitled: true, LineCount: 3})
	sendFrame(t, conn, frame{Type: "text_changed", DocKey: "u", LineCount: 4})
	sendFrame(t, conn, frame{Type: "closed", DocKey: "u"})

	events := sink.wait(t, 2)
	if ev, ok := events[0].(engine.EditorTextChanged); !ok || ev.DocKey != "u" {
		t.Fatalf("events[0] = %#v", events[0])
	}
	if ev, ok := events[1].(engine.EditorClosed); !ok || !ev.Untitled {
		t.Fatalf("events[1] = %#v", events[1])
	}
}

func TestApplyPushesDecorationsWithStyle(t *testing.T) {
	hub, conn, _ := newTestHub(t)
	waitAttached(t, hub, conn)
	decs := []highlight.Decoration{{
		Range: highlight.Range{StartLine: 3, EndLine: 3},
		Hint:  highlight.RenderHint{Hover: "alice"},
	}}
	hub.Apply("file:///w/a.ts", decs)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if f.Type != "decorations" || f.DocKey != "file:///w/a.ts" {
		t.Fatalf("frame = %+v", f)
	}
	if len(f.Decorations) != 1 || f.Decorations[0].Hint.Hover != "alice" {
		t.Errorf("decorations = %+v", f.Decorations)
	}
	if f.Style == nil || f.Style.Color != "green" {
		t.Errorf("style = %+v", f.Style)
	}
}

func TestTokenPromptRoundTrip(t *testing.T) {
	hub, conn, _ := newTestHub(t)
	waitAttached(t, hub, conn)

	type result struct {
		token string
		ok    bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		tok, ok, err := hub.Token(context.Background())
		done <- result{tok, ok, err}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	if f.Type != "prompt" || f.Kind != "token" || f.PromptID == "" {
		t.Fatalf("prompt frame = %+v", f)
	}
	sendFrame(t, conn, frame{Type: "prompt_response", PromptID: f.PromptID, Value: "oauth:abc"})

	res := <-done
	if res.err != nil || !res.ok || res.token != "oauth:abc" {
		t.Fatalf("token result = %+v", res)
	}
}

func TestPurgePromptDismissal(t *testing.T) {
	hub, conn, _ := newTestHub(t)
	waitAttached(t, hub, conn)

	done := make(chan engine.PurgeChoice, 1)
	go func() {
		choice, _ := hub.PurgePrompt(context.Background())
		done <- choice
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	sendFrame(t, conn, frame{Type: "prompt_response", PromptID: f.PromptID, Value: ""})

	if choice := <-done; choice != engine.ChoiceNone {
		t.Errorf("choice = %v, want ChoiceNone", choice)
	}
}

func TestPromptWithoutSession(t *testing.T) {
	hub := NewHub(Style{}, func(engine.Event) {})
	if _, ok, err := hub.Token(context.Background()); ok || err != nil {
		t.Errorf("Token without session = ok %v err %v", ok, err)
	}
	if choice, err := hub.PurgePrompt(context.Background()); choice != engine.ChoiceNone || err != nil {
		t.Errorf("PurgePrompt without session = %v, %v", choice, err)
	}
}

func TestSessionReplacementFailsPendingPrompt(t *testing.T) {
	sink := &eventSink{}
	hub := NewHub(Style{}, sink.dispatch)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	waitAttached(t, hub, first)

	done := make(chan bool, 1)
	go func() {
		_, ok, _ := hub.Token(context.Background())
		done <- ok
	}()

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := first.ReadJSON(&f); err != nil {
		t.Fatalf("read prompt: %v", err)
	}

	// A reconnecting plugin replaces the session; the first session's
	// prompt must fail rather than leave the caller suspended forever.
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	select {
	case ok := <-done:
		if ok {
			t.Error("prompt answered after session replacement")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt never failed after session replacement")
	}
}

func TestDisconnectFailsPendingPrompt(t *testing.T) {
	hub, conn, _ := newTestHub(t)
	waitAttached(t, hub, conn)

	done := make(chan bool, 1)
	go func() {
		_, ok, _ := hub.Token(context.Background())
		done <- ok
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	conn.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("prompt answered after disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt never failed after disconnect")
	}
}
