package highlight

import (
	"reflect"
	"testing"
)

// resolveAll accepts every requested range as-is.
func resolveAll(start, end int) Range { return Range{StartLine: start, EndLine: end} }

// resolveNone rejects every requested range.
func resolveNone(start, end int) Range { return Range{} }

func addReq(user string, start, end int, doc string) AddRequest {
	return AddRequest{
		User:        user,
		StartLine:   start,
		EndLine:     end,
		DocumentKey: doc,
		DisplayName: doc,
		Resolve:     resolveAll,
	}
}

func TestAddIsIdempotentPerUserAndLine(t *testing.T) {
	r := NewRegistry()
	if got, _ := r.Add(addReq("alice", 3, 3, "a.ts")); got != Added {
		t.Fatalf("first add = %v, want %v", got, Added)
	}
	if got, _ := r.Add(addReq("alice", 3, 3, "a.ts")); got != DuplicateIgnored {
		t.Fatalf("second add = %v, want %v", got, DuplicateIgnored)
	}
	hr, ok := r.Find("a.ts")
	if !ok || hr.Len() != 1 {
		t.Fatalf("expected exactly one stored highlight, got ok=%v len=%d", ok, hr.Len())
	}
}

func TestAddSameLineDifferentUsers(t *testing.T) {
	r := NewRegistry()
	r.Add(addReq("alice", 3, 3, "a.ts"))
	if got, _ := r.Add(addReq("bob", 3, 3, "a.ts")); got != Added {
		t.Fatalf("different user on same line = %v, want %v", got, Added)
	}
	hr, _ := r.Find("a.ts")
	if hr.Len() != 2 {
		t.Errorf("expected 2 highlights, got %d", hr.Len())
	}
}

func TestAddRejectsEmptyRange(t *testing.T) {
	r := NewRegistry()
	req := addReq("alice", 99, 99, "a.ts")
	req.Resolve = resolveNone
	if got, _ := r.Add(req); got != EmptyRangeRejected {
		t.Fatalf("add = %v, want %v", got, EmptyRangeRejected)
	}
	if _, ok := r.Find("a.ts"); ok {
		t.Errorf("rejected add must not create a highlighter")
	}
	if r.Total() != 0 {
		t.Errorf("registry should be empty, has %d", r.Total())
	}
}

func TestRemoveByUserSpansAllDocuments(t *testing.T) {
	r := NewRegistry()
	r.Add(addReq("bob", 1, 1, "a.ts"))
	r.Add(addReq("bob", 5, 6, "b.ts"))
	r.Add(addReq("alice", 2, 2, "a.ts"))

	if got := r.RemoveByUser("bob"); got != 2 {
		t.Fatalf("RemoveByUser = %d, want 2", got)
	}
	for _, doc := range []string{"a.ts", "b.ts"} {
		hr, _ := r.Find(doc)
		for _, hl := range hr.Highlights() {
			if hl.User == "bob" {
				t.Errorf("bob still present in %s", doc)
			}
		}
	}
	if got := r.RemoveByUser("bob"); got != 0 {
		t.Errorf("second RemoveByUser = %d, want 0", got)
	}
}

func TestRemoveByLine(t *testing.T) {
	r := NewRegistry()
	r.Add(addReq("alice", 3, 3, "a.ts"))
	if !r.RemoveByLine(3, "a.ts", false) {
		t.Fatal("RemoveByLine = false, want true")
	}
	hr, ok := r.Find("a.ts")
	if !ok {
		t.Fatal("highlighter should survive targeted removal")
	}
	if hr.Len() != 0 {
		t.Errorf("expected empty highlighter, got %d", hr.Len())
	}
	if r.RemoveByLine(3, "a.ts", false) {
		t.Error("removing an already-removed line should report false")
	}
	if r.RemoveByLine(1, "nope.ts", false) {
		t.Error("unknown document should report false, not fault")
	}
}

func TestRemoveAllResetsEverything(t *testing.T) {
	r := NewRegistry()
	r.Add(addReq("alice", 1, 1, "a.ts"))
	r.Add(addReq("bob", 2, 2, "b.ts"))
	r.RemoveAll()
	if r.Total() != 0 {
		t.Errorf("Total = %d, want 0", r.Total())
	}
	if len(r.Documents()) != 0 {
		t.Errorf("Documents = %v, want none", r.Documents())
	}
	if _, ok := r.Find("a.ts"); ok {
		t.Error("no highlighter should survive a full reset")
	}
}

func TestOnChangeFiresOnMutationsOnly(t *testing.T) {
	r := NewRegistry()
	fired := 0
	r.SetOnChange(func() { fired++ })

	r.Add(addReq("alice", 3, 3, "a.ts")) // fires
	if fired != 1 {
		t.Fatalf("after add fired=%d, want 1", fired)
	}
	r.Add(addReq("alice", 3, 3, "a.ts")) // duplicate: no-op
	req := addReq("alice", 9, 9, "a.ts")
	req.Resolve = resolveNone
	r.Add(req) // rejected: no-op
	if fired != 1 {
		t.Fatalf("no-op adds fired the hook, fired=%d", fired)
	}
	r.RemoveByLine(3, "a.ts", true) // deferred
	if fired != 1 {
		t.Fatalf("deferred removal fired the hook, fired=%d", fired)
	}
	r.Add(addReq("bob", 1, 1, "a.ts"))
	r.RemoveByUser("nobody") // removes nothing
	if fired != 2 {
		t.Fatalf("empty RemoveByUser fired the hook, fired=%d", fired)
	}
	r.RemoveAll()
	if fired != 3 {
		t.Fatalf("RemoveAll did not fire, fired=%d", fired)
	}
}

func TestDropDiscardsDocument(t *testing.T) {
	r := NewRegistry()
	r.Add(addReq("alice", 1, 1, "untitled-1"))
	r.Drop("untitled-1")
	if _, ok := r.Find("untitled-1"); ok {
		t.Error("dropped document still present")
	}
	// Dropping an unknown key is a no-op, not a fault.
	r.Drop("untitled-2")
}

func TestScenarioAddDuplicateRemove(t *testing.T) {
	// Mirrors the canonical flow: alice highlights a.ts line 3 twice, then
	// the line is removed and decorations go empty.
	r := NewRegistry()
	if got, _ := r.Add(addReq("alice", 3, 3, "a.ts")); got != Added {
		t.Fatalf("add = %v", got)
	}
	if got, _ := r.Add(addReq("alice", 3, 3, "a.ts")); got != DuplicateIgnored {
		t.Fatalf("re-add = %v", got)
	}
	if !r.RemoveByLine(3, "a.ts", false) {
		t.Fatal("remove = false")
	}
	hr, _ := r.Find("a.ts")
	if len(hr.Decorations()) != 0 {
		t.Errorf("decorations not empty after removal: %v", hr.Decorations())
	}
}

func TestPickerEntriesAndParseRoundTrip(t *testing.T) {
	r := NewRegistry()
	req := addReq("alice", 3, 4, "doc-a")
	req.DisplayName = "a.ts"
	r.Add(req)
	req = addReq("bob", 10, 10, "doc-a")
	req.DisplayName = "a.ts"
	r.Add(req)

	entries := r.PickerEntries()
	want := []string{"a.ts, 3", "a.ts, 10"}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("PickerEntries = %v, want %v", entries, want)
	}
	for i, entry := range entries {
		name, line, ok := ParsePickerEntry(entry)
		if !ok {
			t.Fatalf("ParsePickerEntry(%q) not ok", entry)
		}
		if name != "a.ts" {
			t.Errorf("entry %d name = %q", i, name)
		}
		if i == 0 && line != 3 || i == 1 && line != 10 {
			t.Errorf("entry %d line = %d", i, line)
		}
	}
}

func TestParsePickerEntryRejectsGarbage(t *testing.T) {
	for _, entry := range []string{"", "a.ts", "a.ts, x", "a, b.ts, x"} {
		if _, _, ok := ParsePickerEntry(entry); ok {
			t.Errorf("ParsePickerEntry(%q) ok = true, want false", entry)
		}
	}
}
