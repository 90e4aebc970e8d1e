package highlight

import "testing"

// recordingRenderer captures the last full decoration set applied.
type recordingRenderer struct {
	doc     string
	decs    []Decoration
	applies int
}

func (r *recordingRenderer) Apply(doc string, decs []Decoration) {
	r.doc = doc
	r.decs = decs
	r.applies++
}

type countingTree struct{ changes int }

func (c *countingTree) HighlightsChanged() { c.changes++ }

func TestSyncerProjectsActiveDocument(t *testing.T) {
	reg := NewRegistry()
	rend := &recordingRenderer{}
	tree := &countingTree{}
	s := NewSyncer(reg, rend, tree)
	reg.SetOnChange(s.Refresh)

	reg.Add(addReq("alice", 2, 4, "a.ts"))
	reg.Add(addReq("bob", 7, 7, "b.ts"))

	s.SetActiveDocument("a.ts")
	if rend.doc != "a.ts" || len(rend.decs) != 1 {
		t.Fatalf("projection = (%q, %d decorations), want (a.ts, 1)", rend.doc, len(rend.decs))
	}
	if rend.decs[0].Range != (Range{StartLine: 2, EndLine: 4}) {
		t.Errorf("decoration range = %+v", rend.decs[0].Range)
	}

	s.SetActiveDocument("b.ts")
	if len(rend.decs) != 1 || rend.decs[0].Range.StartLine != 7 {
		t.Errorf("switching documents should re-project, got %+v", rend.decs)
	}
	if tree.changes == 0 {
		t.Error("tree view was never notified")
	}
}

func TestSyncerEmptySetWhenNoActiveDocument(t *testing.T) {
	reg := NewRegistry()
	rend := &recordingRenderer{}
	s := NewSyncer(reg, rend, nil)
	reg.Add(addReq("alice", 1, 1, "a.ts"))

	s.Refresh()
	if len(rend.decs) != 0 {
		t.Errorf("no active document should project an empty set, got %v", rend.decs)
	}

	s.SetActiveDocument("unknown.ts")
	if len(rend.decs) != 0 {
		t.Errorf("document without highlights should project an empty set, got %v", rend.decs)
	}
}

func TestSyncerFullReplaceAfterMutation(t *testing.T) {
	reg := NewRegistry()
	rend := &recordingRenderer{}
	s := NewSyncer(reg, rend, nil)
	reg.SetOnChange(s.Refresh)
	s.SetActiveDocument("a.ts")

	reg.Add(addReq("alice", 1, 1, "a.ts"))
	reg.Add(addReq("bob", 2, 2, "a.ts"))
	if len(rend.decs) != 2 {
		t.Fatalf("after two adds projection has %d decorations, want 2", len(rend.decs))
	}
	reg.RemoveByLine(1, "a.ts", false)
	if len(rend.decs) != 1 {
		t.Fatalf("after removal projection has %d decorations, want 1", len(rend.decs))
	}
	reg.RemoveAll()
	if len(rend.decs) != 0 {
		t.Fatalf("after reset projection has %d decorations, want 0", len(rend.decs))
	}
}
