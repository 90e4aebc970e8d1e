// Package highlight implements the in-memory highlight registry: per-document
// collections of viewer-claimed line ranges, the rules for adding,
// deduplicating and removing them, and the projection of the active
// document's collection into renderable decorations.
//
// The registry is the single source of truth for highlight state. It is not
// persisted across restarts, and stored line ranges are never re-validated
// against later edits to the document; a range resolved at creation time is
// what gets rendered until the highlight is removed.
package highlight

// SelfUser is the identity recorded for highlights issued locally by the
// streamer instead of by a chat viewer.
const SelfUser = "self"

// Range is a resolved, renderable span of lines in a document.
// Lines are 1-indexed and inclusive.
type Range struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// IsEmpty reports whether the range addresses no renderable lines.
func (r Range) IsEmpty() bool {
	return r.StartLine <= 0 || r.EndLine < r.StartLine
}

// RenderHint is the hover/style descriptor computed once from the
// highlight's author and comment when the highlight is created.
type RenderHint struct {
	Hover string `json:"hover"`
}

func newRenderHint(user, comment string) RenderHint {
	hover := user
	if comment != "" {
		hover = user + ": " + comment
	}
	return RenderHint{Hover: hover}
}

// Highlight is one user's claim on a line range in one document.
// StartLine/EndLine are the caller-facing line numbers the request named;
// Range is what the editor resolved them to at creation time.
type Highlight struct {
	User      string     `json:"user"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Comment   string     `json:"comment,omitempty"`
	Range     Range      `json:"range"`
	Hint      RenderHint `json:"hint"`
}

// Decoration pairs a resolved range with its render hint, ready to hand to
// the editor. The editor always receives the full set for a document, never
// a diff.
type Decoration struct {
	Range Range      `json:"range"`
	Hint  RenderHint `json:"hint"`
}
