package highlight

import (
	"sort"
	"strconv"
	"strings"
)

// PickerSeparator joins document display name and start line in picker
// entries, and is what ParsePickerEntry splits on.
const PickerSeparator = ", "

// Outcome describes the result of an add request.
type Outcome int

const (
	// Added means a new highlight was stored.
	Added Outcome = iota
	// DuplicateIgnored means a highlight with the same (user, startLine)
	// already exists in the document; the request was an idempotent no-op.
	DuplicateIgnored
	// EmptyRangeRejected means the resolved range addressed no renderable
	// lines and nothing was stored.
	EmptyRangeRejected
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case DuplicateIgnored:
		return "duplicate_ignored"
	case EmptyRangeRejected:
		return "empty_range_rejected"
	}
	return "unknown"
}

// RangeResolver maps caller-facing line numbers onto the renderable range
// the document's current content allows. Returning an empty range means the
// request addresses nothing renderable (line past end of document, or a
// blank span).
type RangeResolver func(startLine, endLine int) Range

// AddRequest carries everything needed to store one highlight.
type AddRequest struct {
	User        string
	StartLine   int
	EndLine     int
	DocumentKey string
	DisplayName string
	Comment     string
	Resolve     RangeResolver
}

// Registry owns at most one Highlighter per document and is the only
// mutation surface for highlight state. It is not safe for concurrent use;
// all mutations happen on the router goroutine.
type Registry struct {
	highlighters map[string]*Highlighter
	onChange     func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{highlighters: make(map[string]*Highlighter)}
}

// SetOnChange registers the projection trigger invoked after every
// non-deferred mutation.
func (r *Registry) SetOnChange(fn func()) { r.onChange = fn }

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Add stores a highlight for the request's document. Duplicate (user,
// startLine) pairs are ignored so chat retries cannot double up, and a
// request whose resolved range is empty is rejected without mutating state.
func (r *Registry) Add(req AddRequest) (Outcome, Highlight) {
	hr := r.highlighters[req.DocumentKey]
	if hr != nil && hr.find(req.User, req.StartLine) >= 0 {
		return DuplicateIgnored, Highlight{}
	}
	rng := Range{StartLine: req.StartLine, EndLine: req.EndLine}
	if req.Resolve != nil {
		rng = req.Resolve(req.StartLine, req.EndLine)
	}
	if rng.IsEmpty() {
		return EmptyRangeRejected, Highlight{}
	}
	if hr == nil {
		hr = NewHighlighter(req.DocumentKey, req.DisplayName)
		r.highlighters[req.DocumentKey] = hr
	}
	hl := Highlight{
		User:      req.User,
		StartLine: req.StartLine,
		EndLine:   req.EndLine,
		Comment:   req.Comment,
		Range:     rng,
		Hint:      newRenderHint(req.User, req.Comment),
	}
	hr.add(hl)
	r.notify()
	return Added, hl
}

// RemoveByUser removes every highlight attributed to user across all
// documents and returns the total count removed. Used when a chat user is
// banned; their annotations disappear everywhere, not just the active
// document.
func (r *Registry) RemoveByUser(user string) int {
	removed := 0
	for _, hr := range r.highlighters {
		removed += hr.removeByUser(user)
	}
	if removed > 0 {
		r.notify()
	}
	return removed
}

// RemoveByLine removes the highlight(s) starting at line in the given
// document and reports whether anything was removed. deferSync lets a
// caller batch several removals before triggering one projection refresh.
func (r *Registry) RemoveByLine(line int, docKey string, deferSync bool) bool {
	hr, ok := r.highlighters[docKey]
	if !ok {
		return false
	}
	removed := hr.removeByLine(line)
	if removed && !deferSync {
		r.notify()
	}
	return removed
}

// RemoveAll resets the registry to empty. Used for "unhighlight all" and for
// disconnect purges.
func (r *Registry) RemoveAll() {
	r.highlighters = make(map[string]*Highlighter)
	r.notify()
}

// Find returns the Highlighter for a document, if one exists.
func (r *Registry) Find(docKey string) (*Highlighter, bool) {
	hr, ok := r.highlighters[docKey]
	return hr, ok
}

// Drop discards a document's Highlighter outright. Only used when an
// untitled document closes; closed files keep their Highlighter so
// reopening restores nothing but the registry stays queryable.
func (r *Registry) Drop(docKey string) {
	if _, ok := r.highlighters[docKey]; !ok {
		return
	}
	delete(r.highlighters, docKey)
	r.notify()
}

// Total returns the number of highlights across all documents.
func (r *Registry) Total() int {
	n := 0
	for _, hr := range r.highlighters {
		n += hr.Len()
	}
	return n
}

// Documents returns the keys of all tracked documents, sorted for stable
// output.
func (r *Registry) Documents() []string {
	keys := make([]string, 0, len(r.highlighters))
	for k := range r.highlighters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PickerEntries returns picker strings for every highlight in every
// document, grouped by document in sorted key order.
func (r *Registry) PickerEntries() []string {
	var out []string
	for _, k := range r.Documents() {
		out = append(out, r.highlighters[k].PickerEntries()...)
	}
	return out
}

// ParsePickerEntry splits a picker entry back into display name and start
// line. The split happens on the first ", " occurrence, matching the
// PickerEntries format exactly.
func ParsePickerEntry(entry string) (displayName string, line int, ok bool) {
	i := strings.Index(entry, PickerSeparator)
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(entry[i+len(PickerSeparator):]))
	if err != nil {
		return "", 0, false
	}
	return entry[:i], n, true
}
